package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/logger"
	"github.com/dskvich/polychat/pkg/payments"
)

type PaymentRepository interface {
	CreatePending(ctx context.Context, payment domain.Payment) error
	CompleteAndCredit(ctx context.Context, sessionID string) (*domain.Payment, bool, error)
}

type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, userID string, pack domain.TokenPack) (*payments.CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*payments.CompletedCheckout, error)
}

type billingService struct {
	users    UserRepository
	payments PaymentRepository
	checkout CheckoutProvider
	packs    []domain.TokenPack
	now      func() time.Time
}

func NewBillingService(
	users UserRepository,
	payments PaymentRepository,
	checkout CheckoutProvider,
	packs []domain.TokenPack,
) *billingService {
	return &billingService{
		users:    users,
		payments: payments,
		checkout: checkout,
		packs:    packs,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *billingService) Packs() []domain.TokenPack {
	return s.packs
}

func (s *billingService) Balance(ctx context.Context, userID string) (int64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("fetching user: %w", err)
	}
	return user.TokenBalance, nil
}

func (s *billingService) Checkout(ctx context.Context, userID, packName string) (*payments.CheckoutSession, error) {
	pack, ok := lo.Find(s.packs, func(p domain.TokenPack) bool {
		return strings.EqualFold(p.Name, strings.TrimSpace(packName))
	})
	if !ok {
		return nil, domain.NewValidationError("unknown token pack %q", packName)
	}

	sess, err := s.checkout.CreateCheckout(ctx, userID, pack)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return nil, domain.NewValidationError("payments are not enabled on this server")
		}
		return nil, fmt.Errorf("creating checkout: %w", err)
	}

	payment := domain.Payment{
		SessionID:   sess.ID,
		UserID:      userID,
		Tokens:      pack.Tokens,
		AmountCents: pack.AmountCents,
		Status:      domain.PaymentPending,
		CreatedAt:   s.now(),
	}
	if err := s.payments.CreatePending(ctx, payment); err != nil {
		return nil, fmt.Errorf("saving payment: %w", err)
	}

	slog.InfoContext(ctx, "Checkout created", "session_id", sess.ID, "pack", pack.Name)
	return sess, nil
}

// HandleWebhook credits the tokens of a paid checkout. Repeated deliveries of the same
// event credit only once.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	completed, err := s.checkout.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrUnhandledEvent) {
			slog.DebugContext(ctx, "Ignoring stripe event", logger.Err(err))
			return nil
		}
		return domain.NewValidationError("invalid webhook: %v", err)
	}

	payment, credited, err := s.payments.CompleteAndCredit(ctx, completed.SessionID)
	if err != nil {
		return fmt.Errorf("completing payment: %w", err)
	}

	if !credited {
		slog.InfoContext(ctx, "Payment already processed or unknown", "session_id", completed.SessionID)
		return nil
	}

	slog.InfoContext(ctx, "Tokens credited", "session_id", payment.SessionID, "user_id", payment.UserID, "tokens", payment.Tokens)
	return nil
}
