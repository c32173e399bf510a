// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects the store, services,
// handlers and middleware, and decides:
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB ──────────┐
//	  ratelimit.Limiter ──┼→ services → handlers → routes
//	  realtime.Hub ───────┤
//	  GitHubProvider ─────┘
//
// This is the "composition root": every dependency is built here and
// nowhere else, so tests can swap one piece (the mailer, the GitHub
// provider) through an Option without touching the rest.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/config"
	"github.com/sakif/buildermatch/internal/handler"
	"github.com/sakif/buildermatch/internal/middleware"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/realtime"
	sqliteRepo "github.com/sakif/buildermatch/internal/repository/sqlite"
	"github.com/sakif/buildermatch/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and, in production, the Redis
// client behind the rate limiter. Both are released by Close, which Start
// calls after the HTTP server has drained.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	closers []io.Closer
}

// Option replaces one collaborator. Production wiring uses none of them.
type Option func(*options)

type options struct {
	mailer         service.Mailer
	signInProvider service.IdentityProvider
	linkProvider   service.IdentityProvider
	limiter        ratelimit.Limiter
}

// WithMailer replaces the logging mailer.
func WithMailer(m service.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithIdentityProviders replaces the GitHub providers used for sign-in and
// for linking.
func WithIdentityProviders(signIn, link service.IdentityProvider) Option {
	return func(o *options) {
		o.signInProvider = signIn
		o.linkProvider = link
	}
}

// WithLimiter replaces the limiter chosen from the Redis configuration.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// New builds the whole dependency graph from cfg.
//
// WIRING ORDER:
//  1. open and migrate the database
//  2. pick the rate limiter (Redis when configured, in-process otherwise)
//  3. build the GitHub providers, one per callback URL
//  4. build services, then handlers, then routes
//
// Anything opened before a failure is closed again before returning.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	// === DATABASE ===
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		db:      db,
		closers: []io.Closer{db},
	}

	// === RATE LIMITER ===
	if o.limiter == nil {
		o.limiter, err = s.newLimiter()
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	// === IDENTITY PROVIDERS ===
	// GitHub only redirects back to the callback registered in the
	// authorize request, so sign-in and linking need separate configs.
	if !cfg.GitHub.Enabled() {
		logger.Warn("GitHub OAuth is not configured; sign-in with GitHub and account linking will fail")
	}
	if o.signInProvider == nil {
		o.signInProvider = s.githubProvider("/auth/github/callback")
	}
	if o.linkProvider == nil {
		o.linkProvider = s.githubProvider("/auth/callback")
	}

	if o.mailer == nil {
		o.mailer = service.LogMailer{Logger: logger}
	}

	if err := s.setupRoutes(o); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) newLimiter() (ratelimit.Limiter, error) {
	if s.cfg.Redis.URL == "" {
		s.logger.Info("using in-process rate limiter")
		return ratelimit.NewMemoryLimiter(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := ratelimit.NewRedisLimiter(ctx, s.cfg.Redis.URL, s.cfg.Redis.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s.closers = append(s.closers, l)
	s.logger.Info("using redis rate limiter")
	return l, nil
}

func (s *Server) githubProvider(callbackPath string) *auth.GitHubProvider {
	return auth.NewGitHubProvider(auth.GitHubConfig{
		ClientID:     s.cfg.GitHub.ClientID,
		ClientSecret: s.cfg.GitHub.ClientSecret,
		RedirectURL:  s.cfg.Server.BaseURL + callbackPath,
	})
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                     → liveness + database ping
//	GET  /metrics                     → Prometheus scrape endpoint
//	/auth/*                           → browser-facing sign-in flows (redirects)
//	/api/*                            → JSON API; services enforce authentication
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers (rate-limit key).
//     Only installed when server.trust_proxy is set; without a proxy in
//     front, RemoteAddr is the only address a client can't forge.
//  3. Logger + Metrics: see every response, including recovered panics
//  4. Recoverer: turns panics into 500s
//  5. CORS: answers preflights before any session work
//  6. LoadSession: attaches the caller's Session when the cookie is valid
func (s *Server) setupRoutes(o options) error {
	tokens, err := auth.NewTokenService(s.cfg.Auth.SessionSecret, s.cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	secure := s.cfg.IsProduction()
	hub := realtime.NewHub()

	// === SERVICES ===
	authService := service.NewAuthService(service.AuthServiceConfig{
		Users:      s.db,
		MagicLinks: s.db,
		Identities: s.db,
		Profiles:   s.db,
		Tokens:     tokens,
		Hasher:     auth.NewSecretHasher(),
		Provider:   o.signInProvider,
		Limiter:    o.limiter,
		Mailer:     o.mailer,
		BaseURL:    s.cfg.Server.BaseURL,
		Logger:     s.logger,
	})
	linkService := service.NewLinkService(o.linkProvider, s.db, s.db, o.limiter, s.logger)
	profileService := service.NewProfileService(s.db, s.db, s.db, s.db, s.db, o.limiter, s.logger)
	portfolioService := service.NewPortfolioService(o.linkProvider, s.db, s.db, o.limiter, s.logger)
	feedService := service.NewFeedService(s.db, s.db, s.logger)
	interactionService := service.NewInteractionService(s.db, s.db, hub, o.limiter, s.logger)
	messagingService := service.NewMessagingService(s.db, hub, s.logger)

	// === HANDLERS ===
	transient := handler.NewTransientCookies(s.cfg.Auth.CookieSecret, secure)
	authHandler := handler.NewAuthHandler(authService, transient, secure, s.logger)
	linkHandler := handler.NewLinkHandler(linkService, transient, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, s.logger)
	portfolioHandler := handler.NewPortfolioHandler(portfolioService, transient, s.logger)
	feedHandler := handler.NewFeedHandler(feedService, s.logger)
	interactionHandler := handler.NewInteractionHandler(interactionService, s.logger)
	inboxHandler := handler.NewInboxHandler(messagingService, s.logger)
	realtimeHandler := handler.NewRealtimeHandler(messagingService, s.cfg.CORS.AllowedOrigins, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	if s.cfg.Server.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))
	s.router.Use(auth.LoadSession(tokens))

	// === Operational Routes ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/start", linkHandler.HandleStart)
		r.Get("/callback", linkHandler.HandleCallback)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/magic-link", authHandler.HandleMagicLinkRequest)
		r.Get("/magic-link/verify", authHandler.HandleMagicLinkVerify)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === API Routes ===
	// The session is already in the context. Each service decides whether
	// it needs one, so every route below answers 401 through the same
	// error envelope.
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/me", profileHandler.HandleMe)
		r.Put("/me/basics", profileHandler.HandleUpdateBasics)
		r.Put("/me/onboarding", profileHandler.HandleSaveOnboarding)
		r.Get("/me/onboarding-status", profileHandler.HandleOnboardingStatus)
		r.Put("/me/skills", profileHandler.HandleReplaceSkills)
		r.Get("/skills", profileHandler.HandleListSkills)
		r.Post("/skills", profileHandler.HandleCreateSkill)

		r.Get("/me/github", linkHandler.HandleStatus)
		r.Delete("/me/github", linkHandler.HandleDisconnect)
		r.Get("/me/github/repos", portfolioHandler.HandleListRepositories)
		r.Post("/me/github/import", portfolioHandler.HandleImport)
		r.Put("/me/portfolio", portfolioHandler.HandleReplaceManual)
		r.Delete("/me/portfolio/{id}", portfolioHandler.HandleDeleteItem)

		r.Get("/feed", feedHandler.HandleFeed)
		r.Get("/interactions", interactionHandler.HandleInteractions)
		r.Get("/matches", interactionHandler.HandleMatches)

		r.Get("/people/{id}", profileHandler.HandlePublicProfile)
		r.Post("/people/{id}/like", interactionHandler.HandleLike)
		r.Post("/people/{id}/pass", interactionHandler.HandlePass)
		r.Post("/people/{id}/save", interactionHandler.HandleSaveUser)
		r.Post("/people/{id}/threads", interactionHandler.HandleStartThread)
		r.Post("/projects/{id}/save", interactionHandler.HandleSaveProject)

		r.Get("/threads", inboxHandler.HandleListThreads)
		r.Get("/threads/{id}/messages", inboxHandler.HandleMessages)
		r.Post("/threads/{id}/messages", inboxHandler.HandleSend)
		r.Post("/threads/{id}/read", inboxHandler.HandleMarkRead)
		r.Get("/threads/{id}/ws", realtimeHandler.HandleThreadSocket)
	})

	return nil
}

// handleHealth reports whether the database answers.
//
// HTTP: GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and the limiter's Redis client.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database (flushes the WAL, releases the file lock) and Redis
//
// Open websockets are hijacked connections that Shutdown does not wait for;
// they end when the process exits and clients reconnect.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("url", s.cfg.Server.BaseURL),
			slog.String("environment", s.cfg.Server.Environment),
			slog.String("database", s.cfg.Database.Path),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
