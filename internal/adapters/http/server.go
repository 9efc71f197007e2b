// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/tilevault/internal/adapters/metrics"
	"github.com/jobrunner/tilevault/internal/application"
	"github.com/jobrunner/tilevault/internal/config"
)

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	tiles       *application.TileService
	health      *application.HealthService
	maintenance *application.MaintenanceService
	metrics     *metrics.Collector
	cors        *corsPolicy
	logger      *slog.Logger
	config      config.ServerConfig
}

// NewServer creates a new HTTP server. The maintenance service and metrics
// collector are optional; nil disables the cleanup endpoint and request
// metrics respectively.
func NewServer(
	cfg config.ServerConfig,
	tiles *application.TileService,
	health *application.HealthService,
	maintenance *application.MaintenanceService,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	s := &Server{
		tiles:       tiles,
		health:      health,
		maintenance: maintenance,
		metrics:     collector,
		cors:        newCORSPolicy(cfg.CORS.AllowedOrigins),
		logger:      logger,
		config:      cfg,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Add request metrics if a collector is configured
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	// Add CORS middleware if configured
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Region catalog endpoints
	api.HandleFunc("/regions", s.handleListRegions).Methods(http.MethodGet)
	api.HandleFunc("/regions", s.handleAddRegion).Methods(http.MethodPost)
	api.HandleFunc("/regions/{regionId}", s.handleGetRegion).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}", s.handleRemoveRegion).Methods(http.MethodDelete)
	api.HandleFunc("/regions/{regionId}/download", s.handleDownloadRegion).Methods(http.MethodPost)
	api.HandleFunc("/regions/{regionId}/cancel", s.handleCancelDownload).Methods(http.MethodPost)

	// Estimation and offline availability endpoints
	api.HandleFunc("/estimate", s.handleEstimate).Methods(http.MethodGet)
	api.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodGet)

	// Cached tile delivery
	api.HandleFunc("/tiles/{z}/{x}/{y}", s.handleGetTile).Methods(http.MethodGet)

	// Cache management endpoints
	api.HandleFunc("/cache", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache", s.handleClearCache).Methods(http.MethodDelete)
	if s.maintenance != nil {
		api.HandleFunc("/cache/cleanup", s.handleCleanup).Methods(http.MethodPost)
	}

	// Settings endpoints
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPut)

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)
	r.HandleFunc("/swagger", s.handleSwaggerUI).Methods(http.MethodGet)

	// Frontend for region management (if enabled)
	if s.config.FrontendEnabled {
		r.HandleFunc("/", s.handleFrontend).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// StartTLS starts the server with the supplied TLS configuration.
func (s *Server) StartTLS(tlsConfig *tls.Config) error {
	s.server.TLSConfig = tlsConfig
	s.logger.Info("starting HTTPS server", "address", s.config.Address())
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
