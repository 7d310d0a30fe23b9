// Package api exposes the chat relay over HTTP.
package api

import (
	"net/http"

	"github.com/dskvich/polychat/pkg/api/handler"
	"github.com/dskvich/polychat/pkg/api/middleware"
)

type Handlers struct {
	Chat     handler.ChatStreamer
	Chats    handler.ChatManager
	Images   handler.ImageGenerator
	Accounts handler.Accounts
	Billing  handler.Billing
	Personas handler.PersonaLister
	Registry handler.ProviderLister

	Auth    middleware.TokenAuthenticator
	Limiter *middleware.RateLimiter
}

// NewRouter registers every route. Auth routes and the Stripe webhook are public.
func NewRouter(h Handlers) http.Handler {
	chat := handler.NewChat(h.Chat)
	chats := handler.NewChats(h.Chats)
	images := handler.NewImages(h.Images)
	accounts := handler.NewAccounts(h.Accounts)
	billing := handler.NewBilling(h.Billing)
	catalog := handler.NewCatalog(h.Personas, h.Registry)

	private := []middleware.Middleware{middleware.RequireAuth(h.Auth)}
	if h.Limiter != nil {
		private = append(private, h.Limiter.Middleware)
	}
	protect := func(fn http.HandlerFunc) http.Handler {
		return middleware.Chain(fn, private...)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Health)

	mux.HandleFunc("POST /api/auth/register", accounts.Register)
	mux.HandleFunc("POST /api/auth/login", accounts.Login)
	mux.HandleFunc("POST /api/billing/webhook", billing.Webhook)

	mux.Handle("GET /api/me", protect(accounts.Me))
	mux.Handle("POST /api/chat", protect(chat.Stream))
	mux.Handle("GET /api/chats", protect(chats.List))
	mux.Handle("GET /api/chats/{id}", protect(chats.Get))
	mux.Handle("PATCH /api/chats/{id}", protect(chats.Rename))
	mux.Handle("DELETE /api/chats/{id}", protect(chats.Delete))
	mux.Handle("GET /api/chats/{id}/messages", protect(chats.Messages))
	mux.Handle("POST /api/chats/{id}/messages", protect(chats.AddMessage))
	mux.Handle("POST /api/images", protect(images.Generate))
	mux.Handle("GET /api/personas", protect(catalog.Personas))
	mux.Handle("GET /api/providers", protect(catalog.Providers))
	mux.Handle("GET /api/billing/balance", protect(billing.Balance))
	mux.Handle("POST /api/billing/checkout", protect(billing.Checkout))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog,
		middleware.Recover,
	)
}
