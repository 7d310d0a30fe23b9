package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dskvich/polychat/pkg/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("title is required"), http.StatusBadRequest},
		{fmt.Errorf("user: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("chat: %w", domain.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("chat: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("chat: %w", domain.ErrConflict), http.StatusConflict},
		{fmt.Errorf("user: %w", domain.ErrPaymentRequired), http.StatusPaymentRequired},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := StatusFor(tt.err)
		require.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	w := JSONResponseWriter{}
	w.WriteError(t.Context(), rec, errors.New("pq: password authentication failed"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Internal server error.", body["error"])
}

func TestWriteSuccessResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	w := JSONResponseWriter{}
	w.WriteSuccessResponse(rec, http.StatusCreated, map[string]string{"id": "c1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"success":true,"data":{"id":"c1"}}`, rec.Body.String())
}
