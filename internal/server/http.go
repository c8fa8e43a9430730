package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alfredjeanlab/grapio/internal/model"
)

// healthTimeout bounds the store ping behind GET /v1/health.
const healthTimeout = 2 * time.Second

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/flags/{key}", s.handleSetFlag)
	mux.HandleFunc("DELETE /v1/flags/{key}", s.handleUnsetFlag)
	mux.HandleFunc("GET /v1/flags", s.handleListFlags)
	mux.HandleFunc("GET /v1/flags/{key}/consumers/{consumer}", s.handleGetFlag)
	mux.HandleFunc("GET /v1/resolve/{consumer}", s.handleResolve)
	mux.HandleFunc("GET /v1/consumers", s.handleConsumers)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return CorrelationMiddleware(s.metrics.Middleware(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConsumers handles GET /v1/consumers. The optional stale query
// parameter (a Go duration) hides consumers idle for longer.
func (s *Server) handleConsumers(w http.ResponseWriter, r *http.Request) {
	var stale time.Duration
	if raw := r.URL.Query().Get("stale"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "stale must be a non-negative duration")
			return
		}
		stale = d
	}
	writeJSON(w, http.StatusOK, s.Presence.Roster(stale))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps a service error to an HTTP status: validation
// failures are 400, everything else is 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
