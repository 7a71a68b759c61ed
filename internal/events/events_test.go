package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONLines(&buf)

	require.NoError(t, e.Emit(DownloadUpdate, Progress{ID: "a", Total: 10, Progress: 5}))
	require.NoError(t, e.Emit(DownloadUpdate, Progress{ID: "a", Total: 10, Progress: 10}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"channel":"download_update","payload":{"id":"a","total":10,"progress":5}}`, string(lines[0]))
}

func TestNotifySwallowsFailures(t *testing.T) {
	calls := 0
	failing := EmitterFunc(func(string, any) error {
		calls++
		return errors.New("no listener")
	})
	assert.NotPanics(t, func() {
		Notify(failing, DownloadUpdate, Progress{ID: "x"})
		Notify(nil, DownloadUpdate, Progress{ID: "x"})
	})
	assert.Equal(t, 1, calls)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Emit(DownloadUpdate, Progress{ID: "a", Progress: 1}))
	require.NoError(t, r.Emit(DownloadUpdate, Progress{ID: "b", Progress: 2}))
	assert.Error(t, r.Emit(DownloadUpdate, "not progress"))

	assert.Len(t, r.Events(), 2)
	assert.Equal(t, []Progress{{ID: "b", Progress: 2}}, r.ForID("b"))
}
