package domain

import "time"

type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ChatMessage is appended to while its stream is active and never changed afterwards.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const DefaultChatTitle = "New Conversation"

// File is an attachment sent with the latest user message. Content is raw text for
// documents and base64 (optionally a data URL) for images.
type File struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatRequest asks for the next assistant message of a chat. An empty ChatID starts
// a new chat.
type ChatRequest struct {
	UserID   string        `json:"userId"`
	ChatID   string        `json:"chatId,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Persona  Persona       `json:"persona"`
	File     *File         `json:"file,omitempty"`
}
