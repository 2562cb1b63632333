// Package server provides the localhost HTTP facade the browser UI talks
// to. Routes mirror the backend wire shapes so the UI speaks the same
// protocol in guest and authenticated mode.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/config"
	"github.com/foliosync/foliosync/internal/database"
	"github.com/foliosync/foliosync/internal/engine"
	"github.com/foliosync/foliosync/internal/events"
)

const (
	serviceName    = "foliosync"
	serviceVersion = "1.0.0"
)

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Config   *config.Config
	Executor *engine.Executor
	Cache    *cache.Store
	GuestDB  *database.DB
	Bus      *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	handlers       *Handlers
	eventsHandler  *EventsHandler
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		handlers:       NewHandlers(cfg.Executor, cfg.Log),
		eventsHandler:  NewEventsHandler(cfg.Bus, cfg.Config.CORSOrigins, cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.GuestDB, cfg.Cache, cfg.Executor.Session()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS for the browser UI dev server
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event stream stays outside the timeout group; a websocket
		// outlives any per-request deadline.
		r.Get("/events/ws", s.eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Compress responses
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			// Session (guest <-> authenticated)
			r.Route("/session", func(r chi.Router) {
				r.Get("/", s.handlers.HandleGetSession)
				r.Post("/", s.handlers.HandleLogin)
				r.Delete("/", s.handlers.HandleLogout)
			})

			// Portfolio
			r.Route("/portfolio", func(r chi.Router) {
				r.Get("/", s.handlers.HandleGetPortfolio)
				r.Post("/", s.handlers.HandleAddHolding)
				r.Put("/update", s.handlers.HandleUpdateHolding)
				r.Post("/reorder", s.handlers.HandleReorderPortfolio)
				r.Post("/upload", s.handlers.HandleUploadPortfolio)
				r.Delete("/{symbol}", s.handlers.HandleRemoveHolding)
			})

			// Watchlist
			r.Route("/watchlist", func(r chi.Router) {
				r.Get("/", s.handlers.HandleGetWatchlist)
				r.Post("/add/{symbol}", s.handlers.HandleAddToWatchlist)
				r.Delete("/remove/{symbol}", s.handlers.HandleRemoveFromWatchlist)
				r.Post("/reorder", s.handlers.HandleReorderWatchlist)
			})

			// Market data passthrough
			r.Get("/stock/{symbol}", s.handlers.HandleQuote)
			r.Get("/history/{symbol}", s.handlers.HandleHistory)
			r.Get("/news/{symbol}", s.handlers.HandleNews)
			r.Get("/search", s.handlers.HandleSearch)

			// System monitoring
			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr()).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.eventsHandler.CloseAll()
	return s.server.Shutdown(ctx)
}

// Router returns the configured router, used by handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
