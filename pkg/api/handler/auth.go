package handler

import (
	"context"
	"net/http"

	"github.com/dskvich/polychat/pkg/api/middleware"
	"github.com/dskvich/polychat/pkg/api/response"
	"github.com/dskvich/polychat/pkg/domain"
)

type Accounts interface {
	Register(ctx context.Context, name string, animals []string) (*domain.User, string, error)
	Login(ctx context.Context, userID string, animals []string) (string, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}

type accounts struct {
	accounts Accounts
	writer   response.JSONResponseWriter
}

func NewAccounts(a Accounts) *accounts {
	return &accounts{accounts: a}
}

type credentials struct {
	UserID  string   `json:"userId"`
	Name    string   `json:"name"`
	Animals []string `json:"animals"`
}

func (a *accounts) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		a.writer.WriteError(r.Context(), w, err)
		return
	}

	user, token, err := a.accounts.Register(r.Context(), body.Name, body.Animals)
	if err != nil {
		a.writer.WriteError(r.Context(), w, err)
		return
	}
	a.writer.WriteSuccessResponse(w, http.StatusCreated, map[string]string{
		"userId": user.ID,
		"token":  token,
	})
}

func (a *accounts) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		a.writer.WriteError(r.Context(), w, err)
		return
	}

	token, err := a.accounts.Login(r.Context(), body.UserID, body.Animals)
	if err != nil {
		a.writer.WriteError(r.Context(), w, err)
		return
	}
	a.writer.WriteSuccessResponse(w, http.StatusOK, map[string]string{"token": token})
}

func (a *accounts) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.accounts.GetUserByID(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		a.writer.WriteError(r.Context(), w, err)
		return
	}
	a.writer.WriteSuccessResponse(w, http.StatusOK, user)
}
