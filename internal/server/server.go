package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/citybrief/citybrief/internal/agent"
	"github.com/citybrief/citybrief/internal/cache"
	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/otel"
	"github.com/citybrief/citybrief/internal/store"
	"github.com/citybrief/citybrief/internal/weather"
)

const defaultTimeout = 60 * time.Second

// Server holds all dependencies for the HTTP API.
type Server struct {
	router        *chi.Mux
	orchestrator  *agent.Orchestrator
	store         *store.Store
	weatherClient *weather.Client
	newsClient    *news.Client
	viewCache     *cache.ToolCache

	signingKey        []byte
	adminKey          string
	rateLimitRPS      float64
	rateLimitBurst    int
	memoryThresholdMB int
	startTime         time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithAdminKey enables the admin endpoints behind the given API key.
func WithAdminKey(key string) Option {
	return func(s *Server) { s.adminKey = key }
}

// WithRateLimit sets the per-caller request budget.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) { s.rateLimitRPS = rps; s.rateLimitBurst = burst }
}

// WithMemoryThresholdMB sets the usage-report threshold for /v1/admin/memory.
func WithMemoryThresholdMB(mb int) Option {
	return func(s *Server) { s.memoryThresholdMB = mb }
}

// NewServer builds a Server with the required dependencies and optional Option(s).
func NewServer(
	orchestrator *agent.Orchestrator,
	st *store.Store,
	weatherClient *weather.Client,
	newsClient *news.Client,
	viewCache *cache.ToolCache,
	signingKey []byte,
	opts ...Option,
) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		orchestrator:      orchestrator,
		store:             st,
		weatherClient:     weatherClient,
		newsClient:        newsClient,
		viewCache:         viewCache,
		signingKey:        signingKey,
		rateLimitRPS:      5,
		rateLimitBurst:    10,
		memoryThresholdMB: 50,
		startTime:         time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all
// middleware and routes).
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Post("/v1/session", s.handleSessionCreate)

	// Session-authenticated API group
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(s.signingKey))
		r.Use(RateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst))

		// The chat turn includes model calls; no extra request timeout so
		// the executor's own call deadlines apply.
		r.Post("/v1/chat", s.handleChat)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Get("/v1/weather", s.handleWeather)
			r.Get("/v1/news", s.handleNews)
		})
	})

	// Admin group
	r.Group(func(r chi.Router) {
		r.Use(AdminAuthMiddleware(s.adminKey))
		r.Use(middleware.Timeout(defaultTimeout))
		r.Post("/v1/admin/purge", s.handleAdminPurge)
		r.Get("/v1/admin/memory", s.handleAdminMemory)
	})

	return r
}
