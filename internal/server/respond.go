package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redcoatwright/privatebooks/internal/service"
	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/pipeline"
	"github.com/redcoatwright/privatebooks/pkg/store"
)

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a failure envelope carrying err.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, api.Failure(err))
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var perr *pipeline.ParseError
	switch {
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, store.ErrAmountOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	WriteError(w, status, err)
}
