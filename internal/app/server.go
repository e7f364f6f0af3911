package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markdave123-py/CodeInsight/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/CodeInsight/internal/api/middlewares"
	"github.com/markdave123-py/CodeInsight/internal/config"
)

// Handlers groups the endpoint handlers the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Documents *handlers.DocumentHandler
	Chat      *handlers.ChatHandler
	Workspace *handlers.WorkspaceHandler
	Verifier  appMiddleware.TokenVerifier
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, h Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: logger}
}

// NewRouter mounts the public, protected and streaming routes. Streaming
// routes sit outside the request timeout.
func NewRouter(cfg *config.Config, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appMiddleware.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.PublishableKeyHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(api chi.Router) {
		api.Use(appMiddleware.PublishableKey(cfg.PublishableKey))
		auth := appMiddleware.JWTMiddleware(h.Verifier)

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(60 * time.Second))

			// public endpoints
			timed.Post("/signup", h.Auth.Signup)
			timed.Post("/login", h.Auth.Login)

			// protected endpoints
			timed.Group(func(protected chi.Router) {
				protected.Use(auth)
				protected.Get("/session", h.Auth.Session)
				protected.Post("/logout", h.Auth.Logout)
				protected.Get("/workspace", h.Workspace.GetWorkspace)
				protected.Get("/documents", h.Documents.ListDocuments)
				protected.Delete("/documents/{id}", h.Documents.DeleteDocument)
				protected.Get("/chat", h.Chat.GetChat)
				protected.Put("/chat/input", h.Chat.SetInput)
				protected.Delete("/chat", h.Chat.ResetChat)
			})
		})

		api.Group(func(streaming chi.Router) {
			streaming.Use(auth)
			streaming.Post("/documents/upload", h.Documents.UploadDocuments)
			streaming.Post("/chat/messages", h.Chat.SendMessage)
			streaming.Get("/chat/stream", h.Chat.StreamPending)
		})
	})

	// Serve static files from the web directory
	r.Handle("/*", http.FileServer(http.Dir(cfg.WebDir)))

	return r
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
