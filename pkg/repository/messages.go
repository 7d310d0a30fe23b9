package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dskvich/polychat/pkg/domain"
)

const insertMessageQuery = `
	INSERT INTO messages (id, chat_id, role, content, created_at)
	VALUES ($1, $2, $3, $4, $5)
`

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *messageRepository {
	return &messageRepository{db: db}
}

// Add appends msg to its chat and bumps the chat's updated_at.
func (m *messageRepository) Add(ctx context.Context, msg domain.ChatMessage) error {
	if _, err := m.db.ExecContext(ctx, insertMessageQuery, msg.ID, msg.ChatID, msg.Role, msg.Content, msg.Timestamp); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := m.db.ExecContext(ctx, `UPDATE chats SET updated_at = $2 WHERE id = $1`, msg.ChatID, msg.Timestamp); err != nil {
		return fmt.Errorf("touching chat: %w", err)
	}

	return nil
}

func (m *messageRepository) ListByChat(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, chat_id, role, content, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at, id
	`

	rows, err := m.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}
