// Package api exposes backup management over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig configures NewRouter
type RouterConfig struct {
	// APIToken guards /api routes through X-API-Key when set
	APIToken string
	// Gatherer backs /metrics; nil leaves the route out
	Gatherer prometheus.Gatherer
	// HTTPMetrics records per-request counters when set
	HTTPMetrics *HTTPMetrics
}

// NewRouter wires the handler into a chi router
func NewRouter(h *Handler, config RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(RequestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	if config.HTTPMetrics != nil {
		r.Use(config.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", h.HandleHealth)
	if config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/backup", func(r chi.Router) {
		r.Use(RequireAPIKey(config.APIToken, h.logger))

		r.Get("/", h.HandleListBackups)
		r.Post("/", h.HandleCreateBackup)
		r.Delete("/", h.HandleDeleteBackup)
		r.Put("/", h.HandleRestoreBackup)
		r.Patch("/", h.HandleSchedule)
		r.Get("/scheduler", h.HandleSchedulerStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

// NewServer returns an http.Server with conservative timeouts. Restores can
// run long, so there is no write timeout.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

