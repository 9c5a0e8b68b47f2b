// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects stores, services, handlers
// and middleware, and decides:
//   - which store and session backend the config selects
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → OpenStore         → repository.Store (jsonfile or sqlite)
//	  → OpenSessionStore  → session.Store (memory or Redis)
//	  → AuthService, PostService
//	  → AuthHandler, UserHandler, PostHandler
//	  → chi routes
//
// This is the "composition root" pattern: everything is wired in one place
// (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/social-demo/internal/auth"
	"github.com/sakif/social-demo/internal/config"
	"github.com/sakif/social-demo/internal/handler"
	"github.com/sakif/social-demo/internal/middleware"
	"github.com/sakif/social-demo/internal/repository"
	"github.com/sakif/social-demo/internal/repository/jsonfile"
	sqliteRepo "github.com/sakif/social-demo/internal/repository/sqlite"
	"github.com/sakif/social-demo/internal/service"
	"github.com/sakif/social-demo/internal/session"
)

// sessionSweepInterval is how often the in-memory session store drops
// expired sessions.
const sessionSweepInterval = 10 * time.Minute

// Deps lets callers (tests, the CLI) supply components that New would
// otherwise build from the config. Nil fields are built.
type Deps struct {
	Store     repository.Store
	Sessions  session.Store
	Passwords *auth.PasswordService
	Google    handler.GoogleProvider
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the record store and the session store. Both are closed
// on shutdown (or by Close when the server never started).
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	sessions session.Store
	limiter  *middleware.IPRateLimiter // nil when AUTH_RATE_LIMIT=0
	metrics  *middleware.Metrics
}

// New creates a Server from cfg.
//
// WIRING ORDER:
//  1. Open the record store (json or sqlite)
//  2. Open the session store (Redis when REDIS_ADDR is set, else memory)
//  3. Build token, password and session services
//  4. Build the domain services and handlers, then the routes
//
// If any step fails, everything opened before it is closed again.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	store := deps.Store
	if store == nil {
		var err error
		if store, err = OpenStore(cfg); err != nil {
			return nil, err
		}
	}

	sessions := deps.Sessions
	if sessions == nil {
		var err error
		if sessions, err = OpenSessionStore(context.Background(), cfg); err != nil {
			store.Close()
			return nil, err
		}
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		sessions: sessions,
		metrics:  middleware.NewMetrics(),
	}
	if cfg.AuthRateLimit > 0 {
		s.limiter = middleware.NewIPRateLimiter(cfg.AuthRateLimit)
	}

	if err := s.setupRoutes(deps); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// OpenStore opens the record store selected by cfg.StoreDriver.
func OpenStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if cfg.DataPath != ":memory:" {
			// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(cfg.DataPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	case config.DriverJSON, "":
		st, err := jsonfile.Open(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("opening data file: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenSessionStore connects to Redis when cfg.RedisAddr is set and falls
// back to process memory otherwise. Memory sessions are lost on restart.
func OpenSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(sessionSweepInterval), nil
	}
	rs, err := session.NewRedisStore(ctx, session.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return rs, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                         liveness
//	GET    /metrics                         Prometheus
//	POST   /api/register                    rate limited
//	POST   /api/login                       rate limited
//	POST   /api/logout
//	GET    /api/session
//	GET    /api/users/{id}
//	GET    /api/posts
//	GET    /api/posts/{postId}
//	POST   /api/posts                       requireLogin
//	PUT    /api/posts/{postId}              requireLogin
//	DELETE /api/posts/{postId}              requireLogin
//	POST   /api/posts/{postId}/react        requireLogin
//	POST   /api/posts/{postId}/comments     requireLogin
//	GET    /auth/google                     only when Google is configured
//	GET    /auth/google/callback            only when Google is configured
//	GET    /*                               frontend (when STATIC_DIR is set)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique id to each request (for tracing)
//  2. RealIP: only with TRUSTED_PROXY. It rewrites r.RemoteAddr from the
//     X-Forwarded-For / X-Real-IP headers, and the rate limiter keys on
//     r.RemoteAddr, so without a proxy that overwrites them a client could
//     rotate the header and get a fresh bucket each time
//  3. Logger: logs each request with timing info
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. Metrics: counts requests per route pattern
//  6. CORS: lets the frontend origin send the session cookie
//  7. LoadSession: attaches the session user, if any
func (s *Server) setupRoutes(deps Deps) error {
	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	sessionManager := auth.NewSessionManager(s.sessions, tokens, s.config.SessionTTL, s.config.CookieSecure)

	passwords := deps.Passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}

	google := deps.Google
	if google == nil && s.config.GoogleEnabled() {
		google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(auth.LoadSession(sessionManager, s.logger))

	s.router.Get("/healthz", handler.Health)
	s.router.Handle("/metrics", s.metrics.Handler())

	// === API Routes ===
	// DEPENDENCY CHAIN:
	//   s.store → UserRepository / PostRepository
	//   services receive the repository interfaces
	//   handlers receive the services
	authService := service.NewAuthService(s.store.Users(), passwords, s.logger)
	postService := service.NewPostService(s.store.Posts(), s.store.Users(), s.logger)

	authHandler := handler.NewAuthHandler(authService, sessionManager, handler.AuthHandlerConfig{
		Google:        google,
		ClientURL:     s.config.ClientURL,
		SecureCookies: s.config.CookieSecure,
	}, s.logger)
	userHandler := handler.NewUserHandler(authService, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})

		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/session", authHandler.HandleSession)
		r.Get("/users/{id}", userHandler.HandleGet)

		r.Get("/posts", postHandler.HandleList)
		r.Get("/posts/{postId}", postHandler.HandleGet)

		// === Protected Routes ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin)
			r.Post("/posts", postHandler.HandleCreate)
			r.Put("/posts/{postId}", postHandler.HandleUpdate)
			r.Delete("/posts/{postId}", postHandler.HandleDelete)
			r.Post("/posts/{postId}/react", postHandler.HandleReact)
			r.Post("/posts/{postId}/comments", postHandler.HandleComment)
		})
	})

	// === Google OAuth Routes ===
	// Only registered when credentials are configured.
	if authHandler.GoogleEnabled() {
		s.router.Get("/auth/google", authHandler.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	} else {
		s.logger.Info("google sign-in disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}

	// === Frontend ===
	if s.config.StaticDir != "" {
		spa, err := handler.NewSPAHandler(s.config.StaticDir, s.logger)
		if err != nil {
			return fmt.Errorf("creating frontend handler: %w", err)
		}
		s.router.NotFound(spa.ServeHTTP)
	} else {
		s.router.NotFound(handler.NotFound)
	}

	return nil
}

// Close releases the record store and the session store.
func (s *Server) Close() error {
	return errors.Join(s.sessions.Close(), s.store.Close())
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the session store and the record store
//
// The deferred Close makes step 3 happen on every return path.
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing stores", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background work shares the server's lifetime.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.limiter != nil {
		go s.cleanupLimiter(ctx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreDriver),
			slog.String("data", s.config.DataPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// cleanupLimiter forgets idle rate-limit buckets until ctx is done.
func (s *Server) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Cleanup()
		}
	}
}
