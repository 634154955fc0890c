package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"dashboard/internal/core"
	"dashboard/internal/log"
	"dashboard/internal/sources"
)

type errorResponse struct {
	Error      string      `json:"error"`
	Violations []Violation `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a dashboard error to a response. A failed load is
// terminal for the request and is reported as 503 without retrying.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())
	var bad *BadRequestError
	switch {
	case errors.As(err, &bad):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid query parameters", Violations: bad.Violations})
	case errors.Is(err, sources.ErrLoad):
		logger.ErrorContext(r.Context(), "Dataset unavailable",
			log.NewFields().WithOperation(log.OpLoad).WithError(err).ToSlice()...)
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable, try again later")
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "Request timed out", log.FieldError, err.Error())
		writeError(w, http.StatusServiceUnavailable, "request timed out")
	case isQueryError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isQueryError(err error) bool {
	for _, target := range []error{
		core.ErrNoGroupKeys, core.ErrNoMetric, core.ErrUnknownAgg, core.ErrSortKeyNotAggregated,
		core.ErrUnknownGranularity, core.ErrUnsupportedAgg, core.ErrNoValueField,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// handleMethodNotAllowed lists the methods the path does accept.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	var allowed []string
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		probe := r.Clone(r.Context())
		probe.Method = m
		var match mux.RouteMatch
		if s.router.Match(probe, &match) && match.MatchErr == nil {
			allowed = append(allowed, m)
		}
	}
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIP(r), log.FieldPath, r.URL.Path, log.FieldComponent, log.ComponentRateLimit)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
