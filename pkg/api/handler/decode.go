package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dskvich/polychat/pkg/domain"
)

const maxBodySize = 20 << 20

// decodeJSON reads one JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewValidationError("request body is too large")
		}
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("request body is empty")
		}
		return domain.NewValidationError("malformed JSON: %v", err)
	}
	return nil
}
