package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go-voxura-native/internal/models"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a scratch directory with a config file pointing every store into it.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("DatabasePath = %q\nIndexPath = %q\nScanConcurrency = 2\n",
		filepath.Join(dir, "db"), filepath.Join(dir, "mods.bleve"))
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	return testEnv{dir: dir, config: cfg}
}

// run executes the root command in-process and returns what it wrote to stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (e testEnv) writeJar(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for n, data := range entries {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

const fabricDescriptor = `{"schemaVersion":1,"id":"sodium","name":"Sodium","version":"0.5.8","icon":"assets/sodium/icon.png"}`

func TestHashAndExists(t *testing.T) {
	env := newTestEnv(t)
	file := filepath.Join(env.dir, "hello.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	out, err := env.run(t, "hash", file)
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592\n", out)

	missing := filepath.Join(env.dir, "nope.txt")
	out, err = env.run(t, "exists", file, missing)
	require.NoError(t, err)
	var got map[string]bool
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]bool{file: true, missing: false}, got)
}

func TestStorageRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "storage", "get", "theme", "--default", `"light"`)
	require.NoError(t, err)
	assert.Equal(t, "\"light\"\n", out)

	_, err = env.run(t, "storage", "set", "theme", `{"name":"dark"}`)
	require.NoError(t, err)

	out, err = env.run(t, "storage", "get", "theme", "--default", "null")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"dark"}`, out)

	_, err = env.run(t, "storage", "set", "theme", "{not json")
	assert.Error(t, err)
}

func TestModsReadAndCache(t *testing.T) {
	env := newTestEnv(t)
	jar := env.writeJar(t, "sodium.jar", map[string]string{
		"fabric.mod.json": fabricDescriptor,
		"icon.png":        "PNGDATA",
	})

	out, err := env.run(t, "mods", "read", jar)
	require.NoError(t, err)
	var rec models.ModRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "sodium.jar", rec.Name)
	assert.Equal(t, "fabric.mod.json", rec.MetadataKind)
	assert.Equal(t, fabricDescriptor, rec.Metadata)
	assert.Equal(t, []byte("PNGDATA"), rec.Icon)

	_, err = env.run(t, "cache", "add", jar, "--project-id", "AANobbMI", "--version", "v1", "--platform", "modrinth")
	require.NoError(t, err)

	out, err = env.run(t, "cache", "get", rec.Digest)
	require.NoError(t, err)
	var entry models.CacheEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "AANobbMI", entry.ID)
	assert.Equal(t, "modrinth", entry.Platform)
	assert.Equal(t, "fabric.mod.json", entry.MetadataKind)

	out, err = env.run(t, "cache", "view")
	require.NoError(t, err)
	assert.Contains(t, out, rec.Digest)
	assert.Contains(t, out, "AANobbMI")

	_, err = env.run(t, "cache", "delete", rec.Digest)
	require.NoError(t, err)
	_, err = env.run(t, "cache", "get", rec.Digest)
	assert.Error(t, err)
}

func TestModsScanSkipsUnreadable(t *testing.T) {
	env := newTestEnv(t)
	mods := filepath.Join(env.dir, "mods")
	require.NoError(t, os.Mkdir(mods, 0o755))
	sub := testEnv{dir: mods, config: env.config}
	sub.writeJar(t, "a.jar", map[string]string{"fabric.mod.json": fabricDescriptor})
	sub.writeJar(t, "b.jar", map[string]string{"META-INF/mods.toml": "modLoader=\"javafml\"\n"})
	require.NoError(t, os.WriteFile(filepath.Join(mods, "broken.jar"), nil, 0o644))

	out, err := env.run(t, "mods", "scan", mods)
	require.NoError(t, err)
	var recs []models.ModRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)

	kinds := map[string]string{}
	for _, r := range recs {
		kinds[r.Name] = r.MetadataKind
	}
	assert.Equal(t, map[string]string{"a.jar": "fabric.mod.json", "b.jar": "META-INF/mods.toml"}, kinds)
}

func TestCleanRemovesTempFiles(t *testing.T) {
	env := newTestEnv(t)
	downloads := filepath.Join(env.dir, "downloads", "nested")
	require.NoError(t, os.MkdirAll(downloads, 0o755))
	tmp := filepath.Join(downloads, "client.jar.123.tmp")
	keep := filepath.Join(downloads, "client.jar")
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(keep, []byte("done"), 0o644))

	_, err := env.run(t, "clean", filepath.Join(env.dir, "downloads"))
	require.NoError(t, err)
	assert.NoFileExists(t, tmp)
	assert.FileExists(t, keep)

	_, err = env.run(t, "clean", keep)
	assert.Error(t, err)
}

func TestExtractArchiveJSONEvents(t *testing.T) {
	env := newTestEnv(t)
	jar := env.writeJar(t, "assets.zip", map[string]string{"data/readme.txt": "hi"})
	dest := filepath.Join(env.dir, "out")

	out, err := env.run(t, "extract", "archive", jar, dest, "--id", "task-1", "--events", "json")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "data", "readme.txt"))
	assert.Contains(t, out, `"channel":"download_update"`)
	assert.Contains(t, out, `"id":"task-1"`)
}

func TestModsIndexAndSearch(t *testing.T) {
	env := newTestEnv(t)
	jar := env.writeJar(t, "sodium.jar", map[string]string{"fabric.mod.json": fabricDescriptor})

	_, err := env.run(t, "mods", "read", jar, "--index")
	require.NoError(t, err)

	search := func(q string) []map[string]any {
		out, err := env.run(t, "mods", "search", "-q", q)
		require.NoError(t, err)
		var hits []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &hits))
		return hits
	}
	hits := search("sodium")
	require.Len(t, hits, 1)
	assert.Equal(t, "sodium.jar", hits[0]["fileName"])

	mods := filepath.Join(env.dir, "forge-mods")
	require.NoError(t, os.Mkdir(mods, 0o755))
	sub := testEnv{dir: mods, config: env.config}
	sub.writeJar(t, "example.jar", map[string]string{
		"META-INF/mods.toml": "modLoader=\"javafml\"\n[[mods]]\nmodId=\"examplemod\"\n",
	})

	_, err = env.run(t, "mods", "scan", mods, "--index", "--rebuild")
	require.NoError(t, err)
	assert.Empty(t, search("sodium"), "rebuild drops mods that were not rescanned")
	hits = search("examplemod")
	require.Len(t, hits, 1)
	assert.Equal(t, "forge", hits[0]["loader"])
}
