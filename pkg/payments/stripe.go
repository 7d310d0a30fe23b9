// Package payments sells token packs through Stripe Checkout.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/dskvich/polychat/pkg/domain"
)

const (
	metadataUserID = "user_id"
	metadataTokens = "tokens"
)

var (
	ErrUnhandledEvent = errors.New("unhandled stripe event")
	ErrNotConfigured  = errors.New("payments are not configured")
)

// DefaultPacks are offered when no Stripe prices are configured.
var DefaultPacks = []domain.TokenPack{
	{Name: "small", Tokens: 100_000, AmountCents: 500},
	{Name: "medium", Tokens: 500_000, AmountCents: 2000},
	{Name: "large", Tokens: 2_000_000, AmountCents: 6000},
}

type Config struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	// BackendURL overrides the Stripe API endpoint.
	BackendURL string
	HTTPClient *http.Client
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedCheckout is a paid checkout reported by the webhook.
type CompletedCheckout struct {
	SessionID string
	UserID    string
}

type stripeClient struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeClient(cfg Config) (*stripeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stripe API key is required")
	}

	var backends *stripe.Backends
	if cfg.BackendURL != "" || cfg.HTTPClient != nil {
		backendCfg := &stripe.BackendConfig{HTTPClient: cfg.HTTPClient}
		if cfg.BackendURL != "" {
			backendCfg.URL = stripe.String(cfg.BackendURL)
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}
	}

	api := &client.API{}
	api.Init(cfg.APIKey, backends)

	return &stripeClient{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}, nil
}

func (s *stripeClient) CreateCheckout(ctx context.Context, userID string, pack domain.TokenPack) (*CheckoutSession, error) {
	lineItem := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if pack.StripePrice != "" {
		lineItem.Price = stripe.String(pack.StripePrice)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount: stripe.Int64(pack.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(fmt.Sprintf("%d tokens", pack.Tokens)),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.successURL),
		CancelURL:          stripe.String(s.cancelURL),
		ClientReferenceID:  stripe.String(userID),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{lineItem},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, userID)
	params.AddMetadata(metadataTokens, strconv.FormatInt(pack.Tokens, 10))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the signature and returns the paid checkout the event reports.
// Events other than a paid checkout.session.completed yield ErrUnhandledEvent.
func (s *stripeClient) ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verifying webhook: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding checkout session: %w", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, fmt.Errorf("%w: payment status %s", ErrUnhandledEvent, sess.PaymentStatus)
	}

	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata[metadataUserID]
	}

	return &CompletedCheckout{SessionID: sess.ID, UserID: userID}, nil
}

type disabled struct{}

// Disabled rejects every checkout. It stands in when no Stripe key is configured.
func Disabled() disabled {
	return disabled{}
}

func (disabled) CreateCheckout(context.Context, string, domain.TokenPack) (*CheckoutSession, error) {
	return nil, ErrNotConfigured
}

func (disabled) ParseWebhook([]byte, string) (*CompletedCheckout, error) {
	return nil, ErrNotConfigured
}
