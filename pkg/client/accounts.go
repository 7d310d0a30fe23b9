package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dskvich/polychat/pkg/domain"
)

type Session struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func (c *Client) Register(ctx context.Context, name string, animals []string) (*Session, error) {
	var s Session
	body := map[string]any{"name": name, "animals": animals}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Login(ctx context.Context, userID string, animals []string) (*Session, error) {
	s := Session{UserID: userID}
	body := map[string]any{"userId": userID, "animals": animals}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Chats(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *Client) Messages(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) Personas(ctx context.Context) ([]domain.Persona, error) {
	var personas []domain.Persona
	if err := c.do(ctx, http.MethodGet, "/api/personas", nil, &personas); err != nil {
		return nil, err
	}
	return personas, nil
}
