package downloader

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go-voxura-native/internal/errs"
	"go-voxura-native/internal/events"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedServer serves body with an explicit Content-Length, flushing it in
// randomly sized chunks.
func chunkedServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		rng := rand.New(rand.NewSource(42))
		flusher, _ := w.(http.Flusher)
		for off := 0; off < len(body); {
			n := 1 + rng.Intn(70000)
			if off+n > len(body) {
				n = len(body) - off
			}
			_, _ = w.Write(body[off : off+n])
			if flusher != nil {
				flusher.Flush()
			}
			off += n
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadProgressMonotonic(t *testing.T) {
	body := bytes.Repeat([]byte("voxura"), 200000) // 1.2 MB
	srv := chunkedServer(t, body)

	rec := &events.Recorder{}
	d := NewDownloader(srv.Client(), rec, 0)
	dest := filepath.Join(t.TempDir(), "nested", "dir", "asset.bin")

	require.NoError(t, d.Download(context.Background(), "task-1", dest, srv.URL))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	evs := rec.ForID("task-1")
	require.NotEmpty(t, evs)
	n := uint64(len(body))
	assert.Equal(t, n, evs[len(evs)-1].Progress, "final event carries the full size")

	for i, e := range evs {
		assert.Equal(t, n, e.Total)
		assert.Empty(t, e.Error)
		if i == 0 {
			continue
		}
		assert.GreaterOrEqual(t, e.Progress, evs[i-1].Progress)
		if i < len(evs)-1 {
			assert.GreaterOrEqual(t, e.Progress-evs[i-1].Progress, uint64(DefaultThreshold))
		}
	}
	if len(evs) > 1 {
		assert.GreaterOrEqual(t, evs[0].Progress, uint64(DefaultThreshold))
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(dest), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp file is renamed away")
}

func TestDownloadEmptyBody(t *testing.T) {
	srv := chunkedServer(t, nil)
	rec := &events.Recorder{}
	dest := filepath.Join(t.TempDir(), "empty.bin")

	require.NoError(t, NewDownloader(srv.Client(), rec, 0).Download(context.Background(), "e", dest, srv.URL))
	assert.Equal(t, []events.Progress{{ID: "e"}}, rec.Events())
	assert.FileExists(t, dest)
}

func TestDownloadFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "no content length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				_, _ = w.Write([]byte("streamed"))
			},
			wantErr: ErrNoContentLength,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantErr: ErrHttpStatus,
		},
		{
			name: "short body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "1000")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("only a little"))
			},
			wantErr: errs.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rec := &events.Recorder{}
			dir := t.TempDir()
			dest := filepath.Join(dir, "out.bin")

			err := NewDownloader(srv.Client(), rec, 0).Download(context.Background(), "f", dest, srv.URL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, errs.ErrTransport))

			assert.NoFileExists(t, dest)
			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries, "no partial file is kept")

			evs := rec.Events()
			require.NotEmpty(t, evs)
			assert.NotEmpty(t, evs[len(evs)-1].Error, "failure is reported to the listener")
		})
	}
}

func TestStartReportsCompletion(t *testing.T) {
	body := bytes.Repeat([]byte{1}, 250000)
	srv := chunkedServer(t, body)

	done := make(chan events.Progress, 16)
	emitter := events.EmitterFunc(func(_ string, payload any) error {
		done <- payload.(events.Progress)
		return nil
	})
	dest := filepath.Join(t.TempDir(), "bg.bin")
	NewDownloader(srv.Client(), emitter, 0).Start(context.Background(), "bg", dest, srv.URL)

	timeout := time.After(10 * time.Second)
	for {
		select {
		case p := <-done:
			require.Empty(t, p.Error)
			if p.Progress == uint64(len(body)) {
				assert.FileExists(t, dest)
				return
			}
		case <-timeout:
			t.Fatal("download did not complete")
		}
	}
}

func TestProgressTracker(t *testing.T) {
	rec := &events.Recorder{}
	p := &progressTracker{id: "x", emitter: rec, threshold: 10, total: 25}
	for _, n := range []uint64{3, 9, 10, 15, 20, 25} {
		p.update(n)
	}
	p.finish()
	p.finish()

	var got []uint64
	for _, e := range rec.Events() {
		got = append(got, e.Progress)
	}
	assert.Equal(t, []uint64{10, 20, 25}, got)
}

func TestDownloadRequestsIdentityEncoding(t *testing.T) {
	body := bytes.Repeat([]byte("gzip-friendly "), 20000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write(body)
			_ = zw.Close()
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
			_, _ = w.Write(buf.Bytes())
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	rec := &events.Recorder{}
	d := NewDownloader(srv.Client(), rec, 0)
	dest := filepath.Join(t.TempDir(), "asset.bin")

	require.NoError(t, d.Download(context.Background(), "gz", dest, srv.URL))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	evs := rec.ForID("gz")
	require.NotEmpty(t, evs)
	assert.Equal(t, uint64(len(body)), evs[len(evs)-1].Total)
}
