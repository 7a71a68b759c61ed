package modarchive

import (
	"bytes"
	"errors"
	"testing"

	"go-voxura-native/internal/errs"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	data string
}

func buildZip(t *testing.T, entries ...entry) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func openZip(t *testing.T, entries ...entry) *Archive {
	t.Helper()
	r := buildZip(t, entries...)
	a, err := Open(r, r.Size())
	require.NoError(t, err)
	return a
}

func TestDescriptorPriority(t *testing.T) {
	tests := []struct {
		name     string
		entries  []entry
		wantKind string
		wantText string
	}{
		{
			name: "quilt beats fabric",
			entries: []entry{
				{"fabric.mod.json", `{"id":"fab"}`},
				{"quilt.mod.json", `{"quilt_loader":{"id":"qui"}}`},
			},
			wantKind: KindQuilt,
			wantText: `{"quilt_loader":{"id":"qui"}}`,
		},
		{
			name: "fabric beats forge",
			entries: []entry{
				{"META-INF/mods.toml", "modLoader=\"javafml\""},
				{"fabric.mod.json", `{"id":"fab"}`},
			},
			wantKind: KindFabric,
			wantText: `{"id":"fab"}`,
		},
		{
			name:     "forge descriptor",
			entries:  []entry{{"META-INF/mods.toml", "modLoader=\"javafml\""}},
			wantKind: KindForge,
			wantText: "modLoader=\"javafml\"",
		},
		{
			name:     "nested fabric descriptor is not exact",
			entries:  []entry{{"nested/fabric.mod.json", `{"id":"fab"}`}},
			wantKind: "",
		},
		{
			name:     "nested forge descriptor matches by suffix",
			entries:  []entry{{"shaded/META-INF/mods.toml", "x=1"}},
			wantKind: KindForge,
			wantText: "x=1",
		},
		{
			name:     "no descriptor",
			entries:  []entry{{"assets/readme.txt", "hi"}},
			wantKind: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := openZip(t, tt.entries...).Scan(true, false, Descriptor{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Descriptor.Kind)
			assert.Equal(t, tt.wantText, got.Descriptor.Text)
			assert.Nil(t, got.Icon, "icon was not requested")
		})
	}
}

func TestIconLookup(t *testing.T) {
	t.Run("root icon before logo", func(t *testing.T) {
		a := openZip(t,
			entry{"logo.png", "LOGO"},
			entry{"icon.png", "ICON"},
		)
		got, err := a.Scan(false, true, Descriptor{})
		require.NoError(t, err)
		assert.Equal(t, []byte("ICON"), got.Icon)
		assert.False(t, got.Descriptor.Found(), "descriptor was not requested")
	})

	t.Run("root logo beats nested icon", func(t *testing.T) {
		a := openZip(t,
			entry{"assets/mod/textures/gui/icon.png", "NESTED"},
			entry{"logo.png", "LOGO"},
		)
		got, err := a.Scan(false, true, Descriptor{})
		require.NoError(t, err)
		assert.Equal(t, []byte("LOGO"), got.Icon)
	})

	t.Run("nested fallback", func(t *testing.T) {
		got, err := openZip(t, entry{"assets/mod/icon.png", "NESTED"}).Scan(false, true, Descriptor{})
		require.NoError(t, err)
		assert.Equal(t, []byte("NESTED"), got.Icon)
	})

	t.Run("declared icon beats well-known names", func(t *testing.T) {
		a := openZip(t,
			entry{"icon.png", "ROOT"},
			entry{"assets/x/textures/gui/icon.png", "NESTED"},
			entry{"META-INF/mods.toml", "logoFile=\"brand.png\"\n[[mods]]\nmodId=\"x\"\n"},
			entry{"brand.png", "DECLARED"},
		)
		got, err := a.Scan(true, true, Descriptor{})
		require.NoError(t, err)
		assert.Equal(t, KindForge, got.Descriptor.Kind)
		assert.Equal(t, []byte("DECLARED"), got.Icon)
	})

	t.Run("declared icon missing falls back", func(t *testing.T) {
		a := openZip(t,
			entry{"fabric.mod.json", `{"id":"a","icon":"assets/a/missing.png"}`},
			entry{"icon.png", "ROOT"},
		)
		got, err := a.Scan(true, true, Descriptor{})
		require.NoError(t, err)
		assert.Equal(t, []byte("ROOT"), got.Icon)
	})

	t.Run("declared icon from descriptor", func(t *testing.T) {
		a := openZip(t,
			entry{"fabric.mod.json", `{"id":"sodium","icon":"assets/sodium/sodium.png"}`},
			entry{"assets/sodium/sodium.png", "DECLARED"},
		)
		got, err := a.Scan(true, true, Descriptor{})
		require.NoError(t, err)
		assert.Equal(t, KindFabric, got.Descriptor.Kind)
		assert.Equal(t, []byte("DECLARED"), got.Icon)
	})

	t.Run("declared icon from hint", func(t *testing.T) {
		a := openZip(t, entry{"pack.png", "HINTED"})
		hint := Descriptor{Kind: KindFabric, Text: `{"icon":"pack.png"}`}
		got, err := a.Scan(false, true, hint)
		require.NoError(t, err)
		assert.Equal(t, []byte("HINTED"), got.Icon)
	})

	t.Run("no icon", func(t *testing.T) {
		got, err := openZip(t, entry{"a.txt", "a"}).Scan(true, true, Descriptor{})
		require.NoError(t, err)
		assert.Nil(t, got.Icon)
	})
}

func TestOpenCorrupt(t *testing.T) {
	r := bytes.NewReader([]byte("definitely not a zip"))
	_, err := Open(r, r.Size())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCorruptArchive))

	empty := bytes.NewReader(nil)
	_, err = Open(empty, 0)
	assert.True(t, errors.Is(err, errs.ErrCorruptArchive))
}

func TestParseLoaderInfo(t *testing.T) {
	tests := []struct {
		name string
		kind string
		text string
		want LoaderInfo
	}{
		{
			name: "fabric",
			kind: KindFabric,
			text: `{"id":"sodium","name":"Sodium","version":"0.5.3","description":"fast","icon":"assets/sodium/icon.png"}`,
			want: LoaderInfo{Loader: "fabric", ID: "sodium", Name: "Sodium", Version: "0.5.3", Description: "fast", Icon: "assets/sodium/icon.png"},
		},
		{
			name: "fabric sized icons picks largest",
			kind: KindFabric,
			text: `{"id":"x","icon":{"16":"small.png","128":"big.png","32":"mid.png"}}`,
			want: LoaderInfo{Loader: "fabric", ID: "x", Icon: "big.png"},
		},
		{
			name: "quilt",
			kind: KindQuilt,
			text: `{"quilt_loader":{"id":"qsl","version":"7.0","metadata":{"name":"QSL","description":"std","icon":"qsl.png"}}}`,
			want: LoaderInfo{Loader: "quilt", ID: "qsl", Name: "QSL", Version: "7.0", Description: "std", Icon: "qsl.png"},
		},
		{
			name: "forge first mod",
			kind: KindForge,
			text: "modLoader=\"javafml\"\nlogoFile=\"top.png\"\n[[mods]]\nmodId=\"jei\"\nversion=\"15.2\"\ndisplayName=\"JEI\"\ndescription=\"items\"\n[[mods]]\nmodId=\"other\"\n",
			want: LoaderInfo{Loader: "forge", ID: "jei", Name: "JEI", Version: "15.2", Description: "items", Icon: "top.png"},
		},
		{
			name: "unparseable json",
			kind: KindFabric,
			text: `{"id":`,
			want: LoaderInfo{Loader: "fabric"},
		},
		{
			name: "unknown kind",
			kind: "plugin.yml",
			text: "name: x",
			want: LoaderInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLoaderInfo(tt.kind, tt.text))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Sodium", LoaderInfo{Name: "Sodium", ID: "sodium"}.DisplayName("s.jar"))
	assert.Equal(t, "sodium", LoaderInfo{ID: "sodium"}.DisplayName("s.jar"))
	assert.Equal(t, "s.jar", LoaderInfo{}.DisplayName("s.jar"))
}
