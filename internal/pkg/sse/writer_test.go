package sse

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Frames(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	w.SetHeaders()
	require.NoError(t, w.WriteData([]byte(`{"a":1}`)))
	require.NoError(t, w.WriteJSON(map[string]string{"b": "2"}))
	require.NoError(t, w.Done())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "data: {\"a\":1}\n\ndata: {\"b\":\"2\"}\n\ndata: [DONE]\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestWriter_ClosedAfterDone(t *testing.T) {
	w := NewWriter(httptest.NewRecorder())

	require.NoError(t, w.Done())
	assert.ErrorIs(t, w.WriteData([]byte("x")), ErrClosed)
	assert.ErrorIs(t, w.Done(), ErrClosed)
}

type failingWriter struct {
	http.ResponseWriter
	writes int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("broken pipe")
}

func TestWriter_WriteFailureClosesStream(t *testing.T) {
	fw := &failingWriter{ResponseWriter: httptest.NewRecorder()}
	w := NewWriter(fw)

	assert.Error(t, w.WriteData([]byte("x")))
	assert.ErrorIs(t, w.WriteData([]byte("y")), ErrClosed)
	assert.Equal(t, 1, fw.writes)
}
