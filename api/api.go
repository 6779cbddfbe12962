// Package api serves the queuectl HTTP API on a chi router. Every route
// lives under /api and delegates to an engine.Engine.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/queuectl/config"
	"github.com/xraph/queuectl/engine"
)

// Default rate limit: 100 requests per client per 15 minutes.
const (
	DefaultRateLimit  = 100
	DefaultRateWindow = 15 * time.Minute
)

// API wires the HTTP handlers for the queuectl system.
type API struct {
	eng         *engine.Engine
	cfg         config.Provider
	cfgStore    config.Store
	logger      *slog.Logger
	origins     []string
	rateLimit   int
	rateWindow  time.Duration
	maxBodySize int64
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger used for request logs and handler errors.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithConfig sets the provider GET /api/config reads from.
func WithConfig(p config.Provider) Option {
	return func(a *API) { a.cfg = p }
}

// WithConfigStore enables PUT /api/config, persisting through s.
func WithConfigStore(s config.Store) Option {
	return func(a *API) { a.cfgStore = s }
}

// WithCORSOrigins sets the allowed CORS origins. "*" allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.origins = origins }
}

// WithRateLimit allows n requests per client IP in every window. n <= 0
// disables limiting.
func WithRateLimit(n int, window time.Duration) Option {
	return func(a *API) {
		a.rateLimit = n
		a.rateWindow = window
	}
}

// New creates an API from a queuectl Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:         eng,
		logger:      slog.Default(),
		origins:     []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		rateLimit:   DefaultRateLimit,
		rateWindow:  DefaultRateWindow,
		maxBodySize: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(a.origins))
	if a.rateLimit > 0 {
		r.Use(newClientLimiter(a.rateLimit, a.rateWindow).middleware)
	}
	r.Route("/api", a.RegisterRoutes)
	return r
}

// RegisterRoutes registers every queuectl route on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/jobs", a.listJobs)
	r.Get("/jobs/{jobID}", a.getJob)
	r.Post("/enqueue", a.enqueue)

	r.Get("/status", a.status)
	r.Post("/workers/start", a.startWorkers)
	r.Post("/workers/stop", a.stopWorkers)

	r.Get("/dlq", a.listDLQ)
	r.Post("/dlq/retry", a.retryDLQ)

	r.Get("/config", a.getConfig)
	r.Put("/config", a.putConfig)
}
