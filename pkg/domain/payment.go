package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

type Payment struct {
	SessionID   string        `json:"sessionId"`
	UserID      string        `json:"userId"`
	Tokens      int64         `json:"tokens"`
	AmountCents int64         `json:"amountCents"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// TokenPack is a purchasable bundle of generation tokens.
type TokenPack struct {
	Name        string `json:"name"`
	Tokens      int64  `json:"tokens"`
	StripePrice string `json:"-"`
	AmountCents int64  `json:"amountCents"`
}
