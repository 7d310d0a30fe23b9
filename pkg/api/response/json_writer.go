package response

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/logger"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type JSONResponseWriter struct{}

func (j *JSONResponseWriter) WriteSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		slog.Error("encoding success response", logger.Err(err))
	}
}

func (j *JSONResponseWriter) WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope{Error: message}); err != nil {
		slog.Error("encoding error response", logger.Err(err))
	}
}

// WriteError maps err to a status code. Internal details are logged, never returned.
func (j *JSONResponseWriter) WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Request failed", logger.Err(err))
	} else {
		slog.InfoContext(ctx, "Request rejected", "status", status, logger.Err(err))
	}
	j.WriteErrorResponse(w, status, message)
}

func StatusFor(err error) (int, string) {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindValidation {
		return http.StatusBadRequest, de.UserMessage()
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request."
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Authentication required."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Access denied."
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "A response is already being generated for this chat."
	case errors.Is(err, domain.ErrPaymentRequired):
		return http.StatusPaymentRequired, "Your token balance is empty."
	}

	if errors.As(err, &de) && de.Message != "" {
		return http.StatusInternalServerError, de.UserMessage()
	}
	return http.StatusInternalServerError, "Internal server error."
}
