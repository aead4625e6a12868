package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/apply-wizard/internal/config"
	"github.com/terra-clan/apply-wizard/internal/schema"
	"github.com/terra-clan/apply-wizard/internal/session"
)

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	sessions *session.Manager
	catalog  *schema.Catalog
	limiter  *ClientLimiter
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	rl config.RateLimitConfig,
	sessions *session.Manager,
	catalog *schema.Catalog,
) *Server {
	s := &Server{
		config:   cfg,
		sessions: sessions,
		catalog:  catalog,
	}
	if rl.Enabled {
		s.limiter = NewClientLimiter(rl.RPS, rl.Burst)
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Location"},
		MaxAge:         300,
	}))

	// Health check (outside versioned API)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		// Event streams live as long as the client stays connected
		r.With(s.wizardCtx).Get("/wizards/{id}/events", s.handleWizardEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			// Field catalog
			r.Get("/steps", s.handleListSteps)
			r.Get("/steps/{step}", s.handleGetStep)

			// Wizards
			r.Post("/wizards", s.handleCreateWizard)
			r.Route("/wizards/{id}", func(r chi.Router) {
				r.Use(s.wizardCtx)
				r.Get("/", s.handleResumeWizard)
				r.Delete("/", s.handleCloseWizard)
				r.Get("/state", s.handleGetState)
				r.Get("/step/{step}", s.handleGetStepView)
				r.Patch("/sections/{section}", s.handlePatchSection)
				r.Post("/next", s.handleNext)
				r.Post("/back", s.handleBack)
				r.Post("/reset", s.handleReset)
				r.Post("/submit", s.handleSubmit)
				r.Post("/email-check", s.handleEmailCheck)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
