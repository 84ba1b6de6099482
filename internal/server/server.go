// Package server wires the application together: store, session, platform
// client, services, handlers, router. It is the composition root; nothing
// else in the codebase constructs cross-layer dependencies.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/moltdeck/moltdeck/internal/handler"
	"github.com/moltdeck/moltdeck/internal/middleware"
	"github.com/moltdeck/moltdeck/internal/remote/moltbook"
	"github.com/moltdeck/moltdeck/internal/repository/jsonfile"
	"github.com/moltdeck/moltdeck/internal/service"
	"github.com/moltdeck/moltdeck/internal/session"
)

// Config holds everything the server needs to start.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string
	// TemplateDir and StaticDir locate the web assets.
	TemplateDir string
	StaticDir   string
	// CredentialsFile is the identity store path.
	CredentialsFile string
	// APIBaseURL overrides the platform endpoint; empty means production.
	APIBaseURL string
	// RequestTimeout bounds each outbound platform call.
	RequestTimeout time.Duration
}

// Server is the HTTP server and the dependencies it owns.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  *jsonfile.Store
}

// New builds the full dependency chain and the route table. Layering:
// the store and session manager feed the services, services feed the
// handlers, and handlers never touch the store or the platform directly.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := jsonfile.New(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the handler chain, and declares
// the route table.
func (s *Server) setupRoutes() error {
	// Middleware order: request id first so everything downstream can log
	// it, recoverer before the logger so a panic still produces a log line.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	renderer, err := handler.NewRenderer(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	sessions := session.NewManager(s.store)
	platform := moltbook.NewClient(s.config.APIBaseURL, s.config.RequestTimeout, s.logger)

	identityService := service.NewIdentityService(s.store, sessions, platform, s.logger)
	postService := service.NewPostService(sessions, platform, s.logger)

	identityHandler := handler.NewIdentityHandler(identityService, renderer, s.logger)
	postHandler := handler.NewPostHandler(postService, identityService, renderer, s.logger)
	registrationHandler := handler.NewRegistrationHandler(identityService, renderer, s.logger)

	s.router.Get("/", identityHandler.HandleDashboard)

	s.router.Route("/identities", func(r chi.Router) {
		r.Post("/", identityHandler.HandleRegister)
		r.Post("/{name}/activate", identityHandler.HandleActivate)
		r.Post("/{name}/delete", identityHandler.HandleDelete)
		r.Get("/{name}/stats", identityHandler.HandleStats)
	})

	s.router.Route("/posts", func(r chi.Router) {
		r.Get("/", postHandler.HandleRecent)
		r.Get("/new", postHandler.HandleComposer)
		r.Post("/", postHandler.HandleCreate)
	})

	s.router.Get("/register", registrationHandler.HandleForm)
	s.router.Post("/register", registrationHandler.HandleCreate)

	return nil
}

// Handler exposes the router, mainly so tests can drive the server through
// httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests before returning. The credential store needs no teardown: every
// mutation is already flushed through an atomic rewrite.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", s.config.Addr),
			slog.String("url", "http://"+s.config.Addr),
			slog.String("credentials", s.store.Path()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
