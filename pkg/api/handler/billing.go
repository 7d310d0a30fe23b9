package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/dskvich/polychat/pkg/api/middleware"
	"github.com/dskvich/polychat/pkg/api/response"
	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/payments"
)

const maxWebhookSize = 64 << 10

type Billing interface {
	Packs() []domain.TokenPack
	Balance(ctx context.Context, userID string) (int64, error)
	Checkout(ctx context.Context, userID, packName string) (*payments.CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type billing struct {
	billing Billing
	writer  response.JSONResponseWriter
}

func NewBilling(b Billing) *billing {
	return &billing{billing: b}
}

func (b *billing) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := b.billing.Balance(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		b.writer.WriteError(r.Context(), w, err)
		return
	}
	b.writer.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"tokenBalance": balance,
		"packs":        b.billing.Packs(),
	})
}

func (b *billing) Checkout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pack string `json:"pack"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		b.writer.WriteError(r.Context(), w, err)
		return
	}

	sess, err := b.billing.Checkout(r.Context(), middleware.UserID(r.Context()), body.Pack)
	if err != nil {
		b.writer.WriteError(r.Context(), w, err)
		return
	}
	b.writer.WriteSuccessResponse(w, http.StatusOK, sess)
}

func (b *billing) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookSize))
	if err != nil {
		b.writer.WriteError(r.Context(), w, domain.NewValidationError("reading webhook body: %v", err))
		return
	}

	if err := b.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		b.writer.WriteError(r.Context(), w, err)
		return
	}
	b.writer.WriteSuccessResponse(w, http.StatusOK, nil)
}
