package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dskvich/polychat/pkg/domain"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

func (u *userRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, animal_hash, token_balance, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := u.db.ExecContext(ctx, query, user.ID, user.Name, user.AnimalHash, user.TokenBalance, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (u *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT id, name, animal_hash, token_balance, created_at
		FROM users
		WHERE id = $1
	`

	var user domain.User
	err := u.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Name, &user.AnimalHash, &user.TokenBalance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching user by id: %w", err)
	}

	return &user, nil
}

// AdjustBalance adds delta (which may be negative) and returns the new balance.
func (u *userRepository) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	const query = `
		UPDATE users
		SET token_balance = token_balance + $2
		WHERE id = $1
		RETURNING token_balance
	`

	var balance int64
	if err := u.db.QueryRowContext(ctx, query, id, delta).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("adjusting balance: %w", err)
	}

	return balance, nil
}
