// Package trace assigns request IDs and logs request completion.
package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/xid"

	"dashboard/internal/log"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"
)

// Middleware tags each request with an ID, stores a request-scoped logger
// in its context and logs the outcome.
type Middleware struct {
	logger    *log.Logger
	extractIP func(*http.Request) string
	onDone    func(r *http.Request, status int, d time.Duration)
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{logger: logger.WithComponent(log.ComponentHTTP), extractIP: extractIP}
}

// OnDone registers a callback run after every request.
func (m *Middleware) OnDone(fn func(r *http.Request, status int, d time.Duration)) *Middleware {
	m.onDone = fn
	return m
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	withLogger := log.Middleware(m.logger, func(r *http.Request) string { return GetRequestID(r.Context()) })(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		id := requestID(r)
		w.Header().Set(HeaderRequestID, id)
		r = r.WithContext(context.WithValue(r.Context(), RequestIDKey, id))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		withLogger.ServeHTTP(rw, r)

		d := time.Since(start)
		m.logger.With(log.FieldRequestID, id).LogHTTPEnd(r.Context(), r, rw.statusCode, d.Milliseconds(), clientIP)
		if m.onDone != nil {
			m.onDone(r, rw.statusCode, d)
		}
	})
}

// requestID keeps a well-formed incoming ID and mints one otherwise.
func requestID(r *http.Request) string {
	if in := r.Header.Get(HeaderRequestID); in != "" {
		if id, err := xid.FromString(in); err == nil {
			return id.String()
		}
	}
	return xid.New().String()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
