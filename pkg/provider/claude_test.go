package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dskvich/polychat/pkg/domain"
)

func TestClaudeStream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		require.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

		if calls.Add(1) == 1 {
			w.WriteHeader(statusOverloaded)
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
			return
		}

		var body claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "You are Ada.", body.System)
		require.True(t, body.Stream)
		require.Equal(t, defaultClaudeModel, body.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	a := NewClaude(VendorConfig{APIKey: "sk-ant-test", BaseURL: srv.URL}, srv.Client())
	delays := recordSleeps(&a.retry)

	persona := domain.Persona{Name: "Ada", Provider: "claude"}
	req := a.FormatMessages(FormatInput{
		Persona:          persona,
		PreviousMessages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
	})

	stream, err := a.GenerateChatStream(context.Background(), req, persona)
	require.NoError(t, err)
	require.Equal(t, "Hi there", readAllContent(t, a, stream))
	require.Len(t, *delays, 1)
}

func TestClaudeStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	a := NewClaude(VendorConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	stream, err := a.GenerateChatStream(context.Background(), FormattedRequest{Messages: []FormattedMessage{{Role: "user", Content: "hi"}}}, domain.Persona{})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, "overloaded_error", httpErr.Code)
}

func TestClaudeAuthErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	a := NewClaude(VendorConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	recordSleeps(&a.retry)

	_, err := a.GenerateChatStream(context.Background(), FormattedRequest{Messages: []FormattedMessage{{Role: "user", Content: "hi"}}}, domain.Persona{})
	require.Error(t, err)
	require.True(t, IsVendorAuth(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestGeminiStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models/gemini-1.5-pro:streamGenerateContent", r.URL.Path)
		require.Equal(t, "sse", r.URL.Query().Get("alt"))
		require.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 2)
		require.Equal(t, "user", body.Contents[0].Role)
		require.Equal(t, "You are Ada.\n\nhi", body.Contents[0].Parts[0].Text)
		require.Equal(t, "model", body.Contents[1].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Ciao\"}],\"role\":\"model\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"!\"}],\"role\":\"model\"}}]}\n\n")
	}))
	defer srv.Close()

	a := NewGemini(VendorConfig{APIKey: "g-key", BaseURL: srv.URL}, srv.Client())
	persona := domain.Persona{Name: "Ada", ModelCodeName: "gemini-1.5-pro"}
	req := a.FormatMessages(FormatInput{
		Persona: persona,
		PreviousMessages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
		},
	})

	stream, err := a.GenerateChatStream(context.Background(), req, persona)
	require.NoError(t, err)
	require.Equal(t, "Ciao!", readAllContent(t, a, stream))
}
