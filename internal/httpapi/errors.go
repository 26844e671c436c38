package httpapi

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"inferd/internal/engine"
	"inferd/internal/router"
	"inferd/internal/session"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps well-known domain errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, engine.ErrRuntimeUnavailable) {
		return http.StatusServiceUnavailable
	}
	switch {
	case session.IsSessionNotFound(err):
		return http.StatusNotFound
	case session.IsNoModel(err):
		return http.StatusConflict
	case session.IsBusy(err):
		return http.StatusTooManyRequests
	case session.IsModelLoad(err), session.IsEmbedding(err):
		return http.StatusInternalServerError
	case router.IsUnsupportedBackend(err):
		return http.StatusUnprocessableEntity
	case router.IsBackendTest(err):
		return http.StatusServiceUnavailable
	default:
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
