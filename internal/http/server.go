// Package http serves the dashboard JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"dashboard/internal/amqp"
	"dashboard/internal/dashboard"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
	"dashboard/internal/middleware/ratelimit"
	"dashboard/internal/middleware/security"
	"dashboard/internal/middleware/trace"
	"dashboard/internal/sources"
)

// Invalidator drops cached tables so the next request reloads them.
type Invalidator interface {
	Invalidate(name string)
}

// Publisher forwards refresh requests to the snapshot worker.
type Publisher interface {
	PublishRefresh(ctx context.Context, msg *amqp.RefreshMessage) error
}

type Options struct {
	Addr           string
	RequestTimeout time.Duration
	RateLimitRPM   int
	TrustedProxies []string

	Service *dashboard.Service
	// Loader backs the readiness probe.
	Loader      sources.TableLoader
	Invalidator Invalidator
	Publisher   Publisher
	Metrics     *metrics.Metrics
	Logger      *log.Logger
}

type Server struct {
	http.Server

	router         *mux.Router
	svc            *dashboard.Service
	loader         sources.TableLoader
	invalidator    Invalidator
	publisher      Publisher
	metrics        *metrics.Metrics
	logger         *log.Logger
	validate       *validator.Validate
	limiter        *ratelimit.Limiter
	detector       *security.Detector
	clientIP       func(*http.Request) string
	requestTimeout time.Duration

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. Call Shutdown to stop the
// server and its background goroutines.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 7 * time.Second
	}
	ips, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:         mux.NewRouter(),
		svc:            opts.Service,
		loader:         opts.Loader,
		invalidator:    opts.Invalidator,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		logger:         opts.Logger.WithComponent(log.ComponentHTTP),
		validate:       newValidator(),
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:       security.NewDetector(),
		clientIP:       ips.ClientIP,
		requestTimeout: opts.RequestTimeout,
	}
	s.routes()

	tracer := trace.NewMiddleware(opts.Logger, s.clientIP).OnDone(s.observe)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var h http.Handler = s.router
	h = handlers.CompressHandler(h)
	h = s.flagSuspicious(h)
	h = headers.Middleware(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}), handlers.PrintRecoveryStack(false))(h)
	h = tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: opts.RequestTimeout,
		ReadTimeout:       opts.RequestTimeout,
		// handlers get RequestTimeout for their work plus time to write
		WriteTimeout: opts.RequestTimeout + 3*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(s.clientIP, s.handleRateLimited))

	api.HandleFunc("/avocado/options", s.handleAvocadoOptions).Methods(http.MethodGet)
	api.HandleFunc("/avocado/prices", s.handleAvocadoPrices).Methods(http.MethodGet)
	api.HandleFunc("/movies/overview", s.handleMoviesOverview).Methods(http.MethodGet)
	api.HandleFunc("/movies/top", s.handleTopMovies).Methods(http.MethodGet)
	api.HandleFunc("/movies/activity", s.handleActivity).Methods(http.MethodGet)
	api.HandleFunc("/movies/genres", s.handleGenres).Methods(http.MethodGet)
	api.HandleFunc("/movies/user-frequency", s.handleUserFrequency).Methods(http.MethodGet)
	api.HandleFunc("/movies/heatmap", s.handleHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/datasets/refresh", s.handleRefresh).Methods(http.MethodPost)
}

// observe records request metrics under the matched route template.
func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	route := "unmatched"
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.MatchErr == nil && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	s.metrics.ObserveRequest(route, status, d)
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, reason := s.detector.Suspicious(r); ok {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldPath, r.URL.Path, log.FieldMethod, r.Method, "reason", reason,
				log.FieldComponent, log.ComponentSecurity)
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type recoveryLogger struct {
	logger *log.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error("Recovered from panic", "panic", args)
}
