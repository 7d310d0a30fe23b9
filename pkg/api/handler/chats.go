package handler

import (
	"context"
	"net/http"

	"github.com/dskvich/polychat/pkg/api/middleware"
	"github.com/dskvich/polychat/pkg/api/response"
	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/render"
)

type ChatManager interface {
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
	GetChat(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	RenameChat(ctx context.Context, userID, chatID, title string) error
	DeleteChat(ctx context.Context, userID, chatID string) error
	Messages(ctx context.Context, userID, chatID string) ([]domain.ChatMessage, error)
	AddMessage(ctx context.Context, userID, chatID, content string, role domain.Role) (*domain.ChatMessage, error)
}

type chats struct {
	manager ChatManager
	writer  response.JSONResponseWriter
}

func NewChats(manager ChatManager) *chats {
	return &chats{manager: manager}
}

func (c *chats) List(w http.ResponseWriter, r *http.Request) {
	list, err := c.manager.ListChats(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []domain.Chat{}
	}
	c.writer.WriteSuccessResponse(w, http.StatusOK, list)
}

func (c *chats) Get(w http.ResponseWriter, r *http.Request) {
	chat, err := c.manager.GetChat(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}
	c.writer.WriteSuccessResponse(w, http.StatusOK, chat)
}

func (c *chats) Rename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}

	if err := c.manager.RenameChat(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), body.Title); err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}
	c.writer.WriteSuccessResponse(w, http.StatusOK, map[string]string{"title": body.Title})
}

func (c *chats) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.manager.DeleteChat(r.Context(), middleware.UserID(r.Context()), r.PathValue("id")); err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}
	c.writer.WriteSuccessResponse(w, http.StatusOK, nil)
}

// Messages returns the history as JSON, or as a sanitized HTML transcript with ?format=html.
func (c *chats) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	chatID := r.PathValue("id")

	messages, err := c.manager.Messages(ctx, userID, chatID)
	if err != nil {
		c.writer.WriteError(ctx, w, err)
		return
	}

	if r.URL.Query().Get("format") != "html" {
		if messages == nil {
			messages = []domain.ChatMessage{}
		}
		c.writer.WriteSuccessResponse(w, http.StatusOK, messages)
		return
	}

	chat, err := c.manager.GetChat(ctx, userID, chatID)
	if err != nil {
		c.writer.WriteError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(render.Transcript(*chat, messages)))
}

func (c *chats) AddMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string      `json:"content"`
		Role    domain.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}

	msg, err := c.manager.AddMessage(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), body.Content, body.Role)
	if err != nil {
		c.writer.WriteError(r.Context(), w, err)
		return
	}
	c.writer.WriteSuccessResponse(w, http.StatusCreated, msg)
}
