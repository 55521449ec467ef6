// Package server exposes the quiz stores over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/quiznox/internal/auth"
	"github.com/spacesedan/quiznox/internal/db"
	"github.com/spacesedan/quiznox/internal/metrics"
	"github.com/spacesedan/quiznox/internal/monitoring"
)

const ServiceName = "quiznox-api"

const defaultStoreTimeout = 5 * time.Second

type Config struct {
	Questions *db.QuestionStore
	Bookmarks *db.BookmarkStore
	Reviews   *db.ReviewStore
	Auth      *auth.Authenticator
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	// Health backs GET /ready. nil reports ready.
	Health *monitoring.Health

	// StoreTimeout bounds every store call made for a request.
	StoreTimeout time.Duration
	// AllowedOrigins defaults to any origin.
	AllowedOrigins []string

	NewID func() string
	Now   func() time.Time
}

type Server struct {
	questions *db.QuestionStore
	bookmarks *db.BookmarkStore
	reviews   *db.ReviewStore
	auth      *auth.Authenticator
	metrics   *metrics.Collector
	registry  *prometheus.Registry
	logger    *slog.Logger
	health    *monitoring.Health

	storeTimeout time.Duration
	origins      []string
	newID        func() string
	now          func() time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		questions:    cfg.Questions,
		bookmarks:    cfg.Bookmarks,
		reviews:      cfg.Reviews,
		auth:         cfg.Auth,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		health:       cfg.Health,
		storeTimeout: cfg.StoreTimeout,
		origins:      cfg.AllowedOrigins,
		newID:        cfg.NewID,
		now:          cfg.Now,
	}
	if s.auth == nil {
		s.auth = auth.NewAuthenticator("")
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.health == nil {
		s.health = monitoring.NewHealth()
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		s.metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthz)
	r.Get("/ready", s.ready)
	r.Get("/stats", s.stats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/reviews", s.listReviews)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/questions", s.listQuestions)

		r.Post("/bookmark", s.saveBookmark)
		r.Get("/bookmark", s.getBookmark)

		r.Post("/reviews", s.createReview)
		r.Put("/reviews/{review_id}", s.updateReview)
		r.Delete("/reviews/{review_id}", s.deleteReview)
	})

	return r
}

// storeContext bounds the store calls of one request.
func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storeTimeout)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
}

// ready reports the last result of the dependency checks.
func (s *Server) ready(w http.ResponseWriter, _ *http.Request) {
	status, label := http.StatusOK, "ready"
	if !s.health.Healthy() {
		status, label = http.StatusServiceUnavailable, "degraded"
	}
	writeJSON(w, status, map[string]any{"status": label, "checks": s.health.Report()})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
