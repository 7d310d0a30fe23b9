package sse

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterFramesAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	require.NoError(t, w.WriteJSON(map[string]string{"content": "Hi"}))
	require.NoError(t, w.WriteJSON(map[string]string{"error": "busy"}))

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	require.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	require.True(t, rec.Flushed)
	require.Equal(t, "data: {\"content\":\"Hi\"}\n\ndata: {\"error\":\"busy\"}\n\n", rec.Body.String())
}

func TestWriterOutputIsReadable(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	require.NoError(t, w.WriteJSON(map[string]string{"content": "line1\nline2"}))

	events := readAll(t, rec.Body)
	require.Len(t, events, 1)
	require.JSONEq(t, `{"content":"line1\nline2"}`, string(events[0].Data))
}
