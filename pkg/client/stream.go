package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/fallback"
	"github.com/dskvich/polychat/pkg/logger"
	"github.com/dskvich/polychat/pkg/sse"
)

const chatIDHeader = "X-Chat-ID"

// StreamError is an error event sent by the server in the middle of a stream.
type StreamError struct {
	Message          string
	FallbackProvider string
}

func (e *StreamError) Error() string {
	return e.Message
}

type StreamResult struct {
	ChatID string
	// Message is the assistant answer as far as it was received.
	Message domain.ChatMessage
	// Err is set when the server ended the stream with an error event.
	Err              *StreamError
	FallbackProvider string
}

// StreamChat sends req and reads the answer incrementally. onUpdate is called with the
// accumulated assistant message after every content event.
func (c *Client) StreamChat(ctx context.Context, req domain.ChatRequest, onUpdate func(domain.ChatMessage)) (*StreamResult, error) {
	result := &StreamResult{
		Message: domain.ChatMessage{
			ID:        uuid.NewString(),
			ChatID:    req.ChatID,
			Role:      domain.RoleAssistant,
			Timestamp: time.Now().UTC(),
		},
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	result.ChatID = lo.CoalesceOrEmpty(resp.Header.Get(chatIDHeader), req.ChatID)
	result.Message.ChatID = result.ChatID

	events := sse.NewReader(resp.Body)
	for {
		ev, err := events.Next()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("reading stream: %w", err)
		}

		var frame domain.StreamEvent
		if err := json.Unmarshal(ev.Data, &frame); err != nil {
			slog.WarnContext(ctx, "Skipping malformed stream event", "data", string(ev.Data), logger.Err(err))
			continue
		}

		if frame.Error != "" {
			result.Err = &StreamError{Message: frame.Error, FallbackProvider: frame.FallbackProvider}
			result.FallbackProvider = frame.FallbackProvider
			return result, nil
		}

		if frame.Content == "" || hasControlMarker(frame.Content) {
			continue
		}

		result.Message.Content += frame.Content
		if onUpdate != nil {
			onUpdate(result.Message)
		}
	}
}

// StreamChatWithFailover retries on the provider the server suggests as long as no
// content has been received. Every provider is tried at most once.
func (c *Client) StreamChatWithFailover(ctx context.Context, req domain.ChatRequest, onUpdate func(domain.ChatMessage)) (*StreamResult, error) {
	var (
		candidates []domain.Persona
		result     *StreamResult
		err        error
	)
	tried := map[string]bool{}

	for range len(fallback.DefaultOrder) {
		name, _ := domain.ParseProviderName(req.Persona.Provider)
		tried[string(name)] = true

		result, err = c.StreamChat(ctx, req, onUpdate)
		if err != nil {
			return nil, err
		}

		next := result.FallbackProvider
		if result.Err == nil || next == "" || result.Message.Content != "" || tried[next] {
			return result, nil
		}

		if candidates == nil {
			if candidates, err = c.Personas(ctx); err != nil {
				slog.WarnContext(ctx, "Listing personas failed", logger.Err(err))
				candidates = []domain.Persona{}
			}
		}

		slog.InfoContext(ctx, "Retrying with fallback provider", "from", req.Persona.Provider, "to", next, "reason", result.Err.Message)
		req.ChatID = result.ChatID
		req.Persona = fallbackPersona(req.Persona, next, candidates)
	}

	return result, nil
}

// fallbackPersona prefers a catalog persona of the target provider. Otherwise it keeps
// the current persona text and lets the provider choose its default model.
func fallbackPersona(current domain.Persona, providerName string, catalog []domain.Persona) domain.Persona {
	if p, ok := lo.Find(catalog, func(p domain.Persona) bool {
		return strings.EqualFold(p.Provider, providerName)
	}); ok {
		return p
	}

	return domain.Persona{
		Role:         current.Role,
		Provider:     providerName,
		Instructions: current.Instructions,
		Capabilities: current.Capabilities,
		Allowed:      current.Allowed,
	}
}

func hasControlMarker(s string) bool {
	return lo.ContainsBy(domain.StreamControlMarkers, func(m string) bool {
		return strings.Contains(s, m)
	})
}
