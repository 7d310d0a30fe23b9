package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestRunUsage(t *testing.T) {
	require.ErrorIs(t, run(context.Background(), Config{}, nil, &bytes.Buffer{}), errUsage)
	require.ErrorIs(t, run(context.Background(), Config{}, []string{"dance"}, &bytes.Buffer{}), errUsage)
	require.ErrorIs(t, run(context.Background(), Config{}, []string{"ask"}, &bytes.Buffer{}), errUsage)
}

func TestRunAskStreamsAnswer(t *testing.T) {
	color.NoColor = true

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Chat-ID", "c42")
		fmt.Fprint(w, "data: {\"content\":\"Hello\"}\n\ndata: {\"content\":\" world\"}\n\n")
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run(context.Background(), Config{ServerURL: srv.URL, Token: "tok"}, []string{"ask", "-failover=false", "hi"}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Hello world")
	require.Contains(t, out.String(), "chat c42")
}

func TestRunAskReportsErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"error\":\"Authentication with Claude failed. Please check your API keys.\"}\n\n")
	}))
	defer srv.Close()

	err := run(context.Background(), Config{ServerURL: srv.URL}, []string{"ask", "-provider", "claude", "hi"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "check your API keys")
}
