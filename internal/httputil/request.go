package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"diskcatalog/internal/config"
	"diskcatalog/internal/domain"
)

// ParseJSON decodes JSON from the request body into dest.
// Malformed or oversized bodies are reported as domain.ErrValidation.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.ValidationError{
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return &domain.ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	return nil
}

// QueryParam returns a query parameter and whether it was present and non-empty
func QueryParam(r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	return v, v != ""
}

// OptionalQueryParam returns nil for an absent or empty query parameter
func OptionalQueryParam(r *http.Request, name string) *string {
	if v, ok := QueryParam(r, name); ok {
		return &v
	}
	return nil
}
