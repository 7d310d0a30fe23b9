package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dskvich/polychat/pkg/domain"
)

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (p *paymentRepository) CreatePending(ctx context.Context, payment domain.Payment) error {
	const query = `
		INSERT INTO payments (session_id, user_id, tokens, amount_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err := p.db.ExecContext(ctx, query,
		payment.SessionID, payment.UserID, payment.Tokens, payment.AmountCents, domain.PaymentPending, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving payment: %w", err)
	}

	return nil
}

// CompleteAndCredit marks a pending payment completed and credits its tokens to the
// user. It returns false when the payment was already completed or is unknown.
func (p *paymentRepository) CompleteAndCredit(ctx context.Context, sessionID string) (*domain.Payment, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const complete = `
		UPDATE payments
		SET status = $2
		WHERE session_id = $1 AND status = $3
		RETURNING session_id, user_id, tokens, amount_cents, status, created_at
	`

	var payment domain.Payment
	err = tx.QueryRowContext(ctx, complete, sessionID, domain.PaymentCompleted, domain.PaymentPending).
		Scan(&payment.SessionID, &payment.UserID, &payment.Tokens, &payment.AmountCents, &payment.Status, &payment.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("completing payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET token_balance = token_balance + $2 WHERE id = $1`, payment.UserID, payment.Tokens); err != nil {
		return nil, false, fmt.Errorf("crediting tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing payment: %w", err)
	}
	return &payment, true, nil
}
