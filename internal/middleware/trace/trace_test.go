package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/xid"

	"dashboard/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Component: "test", Output: &buf})

	var seenID string
	var doneStatus int
	m := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.1" }).
		OnDone(func(_ *http.Request, status int, _ time.Duration) { doneStatus = status })
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/movies/top?n=3", nil))

	if _, err := xid.FromString(seenID); err != nil {
		t.Fatalf("request id %q is not an xid: %v", seenID, err)
	}
	if rr.Header().Get(HeaderRequestID) != seenID {
		t.Errorf("response header = %q, want %q", rr.Header().Get(HeaderRequestID), seenID)
	}
	if doneStatus != http.StatusTeapot {
		t.Errorf("OnDone status = %d", doneStatus)
	}
	out := buf.String()
	if strings.Count(out, seenID) < 2 {
		t.Errorf("request id missing from logs:\n%s", out)
	}
	if !strings.Contains(out, "status_code=418") || !strings.Contains(out, "client_ip=203.0.113.1") {
		t.Errorf("completion log incomplete:\n%s", out)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	incoming := xid.New().String()
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	for _, tt := range []struct {
		in   string
		keep bool
	}{
		{incoming, true},
		{"<script>", false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.in)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get(HeaderRequestID); (got == tt.in) != tt.keep {
			t.Errorf("incoming %q -> %q", tt.in, got)
		}
	}
}

func TestStatusDefaultsToOK(t *testing.T) {
	var status int
	h := NewMiddleware(nil, nil).
		OnDone(func(_ *http.Request, s int, _ time.Duration) { status = s }).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
}
