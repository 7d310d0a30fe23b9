package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dskvich/polychat/pkg/domain"
)

type chatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *chatRepository {
	return &chatRepository{db: db}
}

// CreateWithMessage stores a new chat together with its first message.
func (c *chatRepository) CreateWithMessage(ctx context.Context, chat domain.Chat, msg domain.ChatMessage) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertChat = `
		INSERT INTO chats (id, user_id, title, provider, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, insertChat,
		chat.ID, chat.UserID, chat.Title, chat.Provider, chat.Model, chat.CreatedAt, chat.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting chat: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertMessageQuery, msg.ID, chat.ID, msg.Role, msg.Content, msg.Timestamp); err != nil {
		return fmt.Errorf("inserting first message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chat: %w", err)
	}
	return nil
}

func (c *chatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	const query = `
		SELECT id, user_id, title, provider, model, created_at, updated_at
		FROM chats
		WHERE id = $1
	`

	var chat domain.Chat
	err := c.db.QueryRowContext(ctx, query, id).
		Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Provider, &chat.Model, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching chat by id: %w", err)
	}

	return &chat, nil
}

func (c *chatRepository) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	const query = `
		SELECT id, user_id, title, provider, model, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	chats := []domain.Chat{}
	for rows.Next() {
		var chat domain.Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Provider, &chat.Model, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chats: %w", err)
	}
	return chats, nil
}

func (c *chatRepository) UpdateTitle(ctx context.Context, id, title string) error {
	const query = `
		UPDATE chats
		SET title = $2, updated_at = NOW()
		WHERE id = $1
	`

	res, err := c.db.ExecContext(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("updating chat title: %w", err)
	}
	return expectAffected(res)
}

func (c *chatRepository) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
