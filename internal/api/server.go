// Package api provides the HTTP API server and handlers for tagsync.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/tagsync/internal/validation"
)

// Options configures the HTTP surface.
type Options struct {
	// CORSOrigins lists the origins allowed to call the API. Empty allows
	// any origin without credentials.
	CORSOrigins []string

	// SyncRatePerMinute limits manual sync and import requests per client.
	SyncRatePerMinute int
}

// DefaultOptions returns the defaults used by the server.
func DefaultOptions() Options {
	return Options{SyncRatePerMinute: 30}
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services    *Services
	router      *chi.Mux
	api         huma.API
	validator   *validation.Validator
	syncLimiter *RateLimiter
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SyncRatePerMinute <= 0 {
		opts.SyncRatePerMinute = DefaultOptions().SyncRatePerMinute
	}

	s := &Server{
		services:    services,
		router:      chi.NewRouter(),
		validator:   validation.New(),
		syncLimiter: NewRateLimiter(opts.SyncRatePerMinute, time.Minute, opts.SyncRatePerMinute/3+1),
		logger:      logger,
	}

	s.setupMiddleware(opts)

	config := huma.DefaultConfig("tagsync API", "1.0.0")
	config.Info.Description = "Grouped tag editing and remote shard sync"
	config.Transformers = append(config.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	s.syncLimiter.Stop()
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}
	if len(opts.CORSOrigins) > 0 {
		corsOpts.AllowedOrigins = opts.CORSOrigins
		corsOpts.AllowCredentials = true
	} else {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(corsOpts))
}

// setupRoutes registers all operations.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerDSLRoutes()
	s.registerPostRoutes()
	s.registerSyncRoutes()
	s.registerSettingsRoutes()
	s.registerImportRoutes()
}
