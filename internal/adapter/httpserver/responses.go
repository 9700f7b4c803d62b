package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carrental/gateway/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the internal error taxonomy to the client-facing response
// shape: a bare {"message": "..."} body. Upstream transport failure always
// produces the same uniform outage message regardless of which backend
// actually failed.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	case errors.Is(err, domain.ErrUpstreamTransport):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Payment Service unavailable"})
	case errors.Is(err, domain.ErrUpstreamApplication):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
}
