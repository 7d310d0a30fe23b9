package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dskvich/polychat/pkg/api/middleware"
	"github.com/dskvich/polychat/pkg/api/response"
	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/services"
	"github.com/dskvich/polychat/pkg/sse"
)

const ChatIDHeader = "X-Chat-ID"

type ChatStreamer interface {
	Start(ctx context.Context, req domain.ChatRequest) (*services.Generation, error)
	Relay(ctx context.Context, gen *services.Generation, emit func(domain.StreamEvent) error)
}

type chat struct {
	streamer ChatStreamer
	writer   response.JSONResponseWriter
}

func NewChat(streamer ChatStreamer) *chat {
	return &chat{streamer: streamer}
}

// Stream answers with an event stream. Validation and ownership failures are reported
// as plain JSON errors before the stream starts.
func (c *chat) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		c.writer.WriteError(ctx, w, err)
		return
	}

	userID := middleware.UserID(ctx)
	if req.UserID != "" && req.UserID != userID {
		c.writer.WriteError(ctx, w, fmt.Errorf("request for user %s: %w", req.UserID, domain.ErrForbidden))
		return
	}
	req.UserID = userID

	gen, err := c.streamer.Start(ctx, req)
	if err != nil {
		c.writer.WriteError(ctx, w, err)
		return
	}

	w.Header().Set(ChatIDHeader, gen.ChatID)
	sw := sse.NewWriter(w)
	w.WriteHeader(http.StatusOK)
	sw.Flush()

	slog.InfoContext(ctx, "Streaming chat response", "chat_id", gen.ChatID, "created", gen.Created)

	c.streamer.Relay(ctx, gen, func(ev domain.StreamEvent) error {
		return sw.WriteJSON(ev)
	})
}
