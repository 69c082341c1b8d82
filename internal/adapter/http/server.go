package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Dependencies are the collaborators behind the routes. Without Reports and
// Views only the operational endpoints are mounted.
type Dependencies struct {
	Ready   ReadinessChecker
	Reports Reports
	Views   Views
	Metrics *observability.Metrics
	// Validate checks submissions before they reach Reports. Nil selects domain.Validate.
	Validate func(domain.RawInput) (domain.ReportInput, error)
}

// Server exposes the report API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and,
// when the report dependencies are set, the /api/v1 routes.
func NewServer(addr string, deps Dependencies, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", handleReady(deps.Ready))
	router.Handle("/metrics", promhttp.Handler())

	if deps.Reports != nil && deps.Views != nil {
		validate := deps.Validate
		if validate == nil {
			validate = domain.Validate
		}
		api := &reportAPI{reports: deps.Reports, views: deps.Views, validate: validate, metrics: deps.Metrics, logger: logger}
		router.Route("/api/v1", func(r chi.Router) {
			r.Get("/reports", api.listReports)
			r.Post("/reports", api.createReport)
			r.Delete("/reports/{id}", api.deleteReport)
			r.Get("/summary", api.summary)
			r.Get("/view", api.view)
		})
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
