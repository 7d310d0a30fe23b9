package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerWritesContextAndAttrs(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(NewHandler(&out, NewOptions("debug", true)))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "u1")
	log.InfoContext(ctx, "Chat started", "chat_id", "c1", Err(errors.New("boom")))

	line := out.String()
	require.Contains(t, line, "req-1")
	require.Contains(t, line, "user=u1")
	require.Contains(t, line, "INFO")
	require.Contains(t, line, "| Chat started")
	require.Contains(t, line, "chat_id=c1")
	require.Contains(t, line, "err=boom")
	require.NotContains(t, line, "\x1b[", "colors are stripped")
}

func TestHandlerLevel(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(NewHandler(&out, NewOptions("warn", true)))

	log.Info("hidden")
	log.Warn("shown")

	require.NotContains(t, out.String(), "hidden")
	require.Contains(t, out.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestContextHelpers(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	require.False(t, ok)

	id, ok := UserIDFromContext(ContextWithUserID(context.Background(), "u1"))
	require.True(t, ok)
	require.Equal(t, "u1", id)
}

func TestHandlerGroups(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(NewHandler(&out, &Options{Level: slog.LevelInfo, NoColor: true}))

	log.WithGroup("vendor").With("name", "claude").Info("Stream opened", slog.Group("usage", "tokens", 12))

	require.Contains(t, out.String(), "vendor.name=claude")
	require.Contains(t, out.String(), "vendor.usage.tokens=12")
}
