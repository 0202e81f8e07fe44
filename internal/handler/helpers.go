package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"diskcatalog/internal/domain"
	"diskcatalog/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httputil.GetRequestID(r),
		)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireQuery reads a mandatory query parameter
func requireQuery(r *http.Request, name string) (string, error) {
	v, ok := httputil.QueryParam(r, name)
	if !ok {
		return "", &domain.ValidationError{Message: name + " query parameter is required"}
	}
	return v, nil
}
