package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dskvich/polychat/pkg/domain"
)

func recordSleeps(p *retryPolicy) *[]time.Duration {
	var delays []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func writeOpenAIStream(w http.ResponseWriter, parts ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, p := range parts {
		chunk, _ := json.Marshal(map[string]any{
			"id":      "chunk",
			"object":  "chat.completion.chunk",
			"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": p}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func readAllContent(t *testing.T, a Adapter, s Stream) string {
	t.Helper()
	deltas := NewTextStream(a, s)
	defer deltas.Close()

	var out string
	for {
		text, err := deltas.Next()
		out += text
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
	}
}

func TestOpenAIStreamRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
			return
		}
		writeOpenAIStream(w, "Hel", "lo")
	}))
	defer srv.Close()

	a := NewOpenAI(VendorConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, srv.Client())
	delays := recordSleeps(&a.retry)

	req := a.FormatMessages(FormatInput{PreviousMessages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}})
	stream, err := a.GenerateChatStream(context.Background(), req, domain.Persona{ModelCodeName: "gpt-4o-mini"})
	require.NoError(t, err)

	require.Equal(t, "Hello", readAllContent(t, a, stream))
	require.EqualValues(t, 3, calls.Load())
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestOpenAIStreamGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	a := NewOpenAI(VendorConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, srv.Client())
	recordSleeps(&a.retry)

	_, err := a.GenerateChatStream(context.Background(), FormattedRequest{Messages: []FormattedMessage{{Role: "user", Content: "hi"}}}, domain.Persona{})

	var vendorErr *VendorError
	require.ErrorAs(t, err, &vendorErr)
	require.Equal(t, domain.ProviderOpenAI, vendorErr.Vendor)
	require.Equal(t, 3, vendorErr.Attempts)
	require.EqualValues(t, 3, calls.Load())
}

func TestOpenAIStreamDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	a := NewX(VendorConfig{APIKey: "xai-test", BaseURL: srv.URL}, srv.Client())
	delays := recordSleeps(&a.retry)

	_, err := a.GenerateChatStream(context.Background(), FormattedRequest{Messages: []FormattedMessage{{Role: "user", Content: "hi"}}}, domain.Persona{})

	var vendorErr *VendorError
	require.ErrorAs(t, err, &vendorErr)
	require.Equal(t, 1, vendorErr.Attempts)
	require.EqualValues(t, 1, calls.Load())
	require.Empty(t, *delays)
}

func TestRetryStopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := defaultRetryPolicy()
	calls := 0
	err := p.do(ctx, domain.ProviderClaude, func() error {
		calls++
		return &HTTPError{StatusCode: http.StatusTooManyRequests}
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestChatRequestUsesCompletionTokensForReasoningModels(t *testing.T) {
	temp := float32(0.2)
	maxTokens := 500
	persona := domain.Persona{
		Capabilities: domain.Capabilities{
			SupportedParameters: domain.SupportedParameters{Temperature: &temp, MaxTokens: &maxTokens},
		},
	}
	a := NewOpenAI(VendorConfig{}, nil)

	persona.ModelCodeName = "o1-mini"
	req := a.chatRequest(FormattedRequest{}, persona)
	require.Equal(t, 500, req.MaxCompletionTokens)
	require.Zero(t, req.MaxTokens)
	require.Zero(t, req.Temperature)

	persona.ModelCodeName = ""
	req = a.chatRequest(FormattedRequest{}, persona)
	require.Equal(t, "gpt-4o-mini", req.Model)
	require.Equal(t, 500, req.MaxTokens)
	require.Equal(t, float32(0.2), req.Temperature)
	require.True(t, req.Stream)
}

func TestVendorMessagesSystemPlacement(t *testing.T) {
	req := FormattedRequest{System: "Be brief.", Messages: []FormattedMessage{{Role: "user", Content: "hi"}}}

	x := NewX(VendorConfig{}, nil).vendorMessages(req)
	require.Len(t, x, 2)
	require.Equal(t, "system", x[0].Role)

	o := NewOpenAI(VendorConfig{}, nil).vendorMessages(req)
	require.Len(t, o, 1)
	require.Equal(t, "Be brief.\n\nhi", o[0].Content)
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "1024x1024", body["size"])
		require.Equal(t, "vivid", body["style"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"created":1,"data":[{"b64_json":"aW1n","revised_prompt":"a cat"}]}`)
	}))
	defer srv.Close()

	a := NewOpenAI(VendorConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, srv.Client())

	img, err := a.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "cat"})
	require.NoError(t, err)
	require.Equal(t, "aW1n", img.B64JSON)
	require.Equal(t, "a cat", img.RevisedPrompt)
}

func TestGenerateImageValidation(t *testing.T) {
	a := NewOpenAI(VendorConfig{}, nil)

	_, err := a.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "cat", Size: "10x10"})
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, domain.KindValidation, domainErr.Kind)

	_, err = NewPerplexity(VendorConfig{}, nil).GenerateImage(context.Background(), domain.ImageRequest{Prompt: "cat"})
	require.ErrorIs(t, err, domain.ErrImageNotSupported)
}

func TestGenerateImageContentPolicyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"rejected","type":"invalid_request_error","code":"content_policy_violation"}}`)
	}))
	defer srv.Close()

	a := NewOpenAI(VendorConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, srv.Client())
	recordSleeps(&a.retry)

	_, err := a.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "cat"})
	require.Error(t, err)
	require.True(t, IsContentPolicy(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestGenerateTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.EqualValues(t, 60, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"\"Planning a Trip\""}}]}`)
	}))
	defer srv.Close()

	a := NewOpenAI(VendorConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, srv.Client())

	title, err := a.GenerateTitle(context.Background(), "help me plan a trip to Rome")
	require.NoError(t, err)
	require.Equal(t, "Planning a Trip", title)
}
