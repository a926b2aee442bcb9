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
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/ragdesk/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/ragdesk/internal/api/middlewares"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(a *App) *Server {
	cfg := a.Config
	docHandler := handlers.NewDocumentHandler(a.Documents)
	chatHandler := handlers.NewChatHandler(a.Chat, a.Sessions)
	sessionHandler := handlers.NewSessionHandler(a.Sessions)
	collectionHandler := handlers.NewCollectionHandler(a.Collections)
	notificationHandler := handlers.NewNotificationHandler(a.Tasks)
	profileHandler := handlers.NewProfileHandler(a.Collections, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// streaming endpoints run as long as the reply or ingestion does
		api.Post("/chat", chatHandler.Chat)
		api.Post("/upload", docHandler.Upload)

		api.Group(func(short chi.Router) {
			short.Use(middleware.Timeout(60 * time.Second))

			short.Get("/documents", docHandler.List)
			short.Get("/documents/{id}/download", docHandler.Download)

			short.Get("/history", sessionHandler.List)
			short.Get("/history/{id}", sessionHandler.History)
			short.Post("/sessions", sessionHandler.Create)
			short.Get("/sessions/archived", sessionHandler.Archived)
			short.Patch("/sessions/{id}", sessionHandler.Update)
			short.Delete("/sessions/{id}", sessionHandler.Delete)

			short.Get("/collections", collectionHandler.List)
			short.Post("/collections", collectionHandler.Create)
			short.Delete("/collections/{name}", collectionHandler.Delete)
			short.Get("/collections/{name}/summary", collectionHandler.Summary)

			short.Get("/notifications", notificationHandler.List)
			short.Post("/notifications/{id}/read", notificationHandler.MarkRead)
			short.Post("/notifications/clear", notificationHandler.Clear)

			short.Get("/profile/stats", profileHandler.Stats)
			short.Get("/runtime/profile", profileHandler.Runtime)
		})
	})

	// Serve static files from the web directory
	r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, log: logger.NewModuleLogger("app", "server")}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
