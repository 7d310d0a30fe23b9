package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stretchr/testify/require"

	"github.com/dskvich/polychat/pkg/domain"
)

const testWebhookSecret = "whsec_test"

func sign(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"client_reference_id": "u1",
			"payment_status": %q,
			"metadata": {"user_id": "u1", "tokens": "100000"}
		}}
	}`, stripe.APIVersion, eventType, paymentStatus))
}

func newTestClient(t *testing.T, backendURL string) *stripeClient {
	t.Helper()
	c, err := NewStripeClient(Config{
		APIKey:        "sk_test_123",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://example.com/ok",
		CancelURL:     "https://example.com/cancel",
		BackendURL:    backendURL,
	})
	require.NoError(t, err)
	return c
}

func TestParseWebhook(t *testing.T) {
	c := newTestClient(t, "")

	payload := eventPayload("checkout.session.completed", "paid")
	checkout, err := c.ParseWebhook(payload, sign(payload))
	require.NoError(t, err)
	require.Equal(t, &CompletedCheckout{SessionID: "cs_test_1", UserID: "u1"}, checkout)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	c := newTestClient(t, "")

	payload := eventPayload("checkout.session.completed", "paid")
	_, err := c.ParseWebhook(payload, "t=1,v1=deadbeef")
	require.Error(t, err)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	c := newTestClient(t, "")

	payload := eventPayload("customer.created", "paid")
	_, err := c.ParseWebhook(payload, sign(payload))
	require.ErrorIs(t, err, ErrUnhandledEvent)

	payload = eventPayload("checkout.session.completed", "unpaid")
	_, err = c.ParseWebhook(payload, sign(payload))
	require.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "u1", r.PostForm.Get("client_reference_id"))
		require.Equal(t, "payment", r.PostForm.Get("mode"))
		require.Equal(t, "500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		require.Equal(t, "100000", r.PostForm.Get("metadata[tokens]"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/pay/cs_test_1"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	sess, err := c.CreateCheckout(context.Background(), "u1", domain.TokenPack{Name: "small", Tokens: 100_000, AmountCents: 500})
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", sess.ID)
	require.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", sess.URL)
}
