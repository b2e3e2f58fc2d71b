package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/learnhub/internal/api"
	"github.com/ashureev/learnhub/internal/config"
	"github.com/ashureev/learnhub/internal/identity"
	"github.com/ashureev/learnhub/internal/middleware"
	"github.com/ashureev/learnhub/internal/reasoning"
	"github.com/ashureev/learnhub/internal/store"
	"github.com/ashureev/learnhub/internal/tutor"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const (
	generalLimitMessage = "Too many requests from this IP, please try again later."
	aiLimitMessage      = "Too many AI requests, please try again later."
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"db_driver", cfg.DBDriver, "trust_proxy", cfg.TrustProxy, "reasoning", cfg.Reasoning.Provider, "auth", cfg.Auth.Provider)

	repo, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected")

	verifier := newVerifier(cfg)

	client, closeClient, err := newReasoningClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()
	adapter := reasoning.NewAdapter(client, cfg.OpenAI.Model, cfg.Reasoning.Timeout, logger)

	convLog, err := tutor.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	tutorSvc := tutor.NewService(repo, adapter, convLog, tutor.Options{
		MaxContextTurns: cfg.Tutor.MaxContextTurns,
		StrictSessions:  cfg.Tutor.StrictSessions,
		AppendRetries:   cfg.Tutor.AppendRetries,
	}, logger)

	generalLimiter := middleware.NewRateLimiter(cfg.RateLimit.GeneralRequests, cfg.RateLimit.Window)
	aiLimiter := middleware.NewRateLimiter(cfg.RateLimit.AIRequests, cfg.RateLimit.Window)
	go generalLimiter.Run(ctx)
	go aiLimiter.Run(ctx)

	r := newRouter(cfg, routes{
		verifier:       verifier,
		api:            api.NewHandler(repo, adapter),
		health:         api.NewHealthHandler(repo, cfg.HealthTimeout),
		tutor:          tutor.NewHandler(tutorSvc),
		ws:             tutor.NewWebSocketHandler(tutorSvc, aiLimiter, cfg.FrontendURL, cfg.IsDevelopment()),
		generalLimiter: generalLimiter,
		aiLimiter:      aiLimiter,
		accessLog:      log.New(os.Stdout, "", log.LstdFlags),
	})

	// WebSocket and reasoning calls can be slow, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}

// routes bundles the handlers and limiters mounted by newRouter.
type routes struct {
	verifier       identity.Verifier
	api            *api.Handler
	health         *api.HealthHandler
	tutor          *tutor.Handler
	ws             *tutor.WebSocketHandler
	generalLimiter *middleware.RateLimiter
	aiLimiter      *middleware.RateLimiter
	accessLog      chiMiddleware.LoggerInterface
}

func newRouter(cfg *config.Config, rt routes) http.Handler {
	generalLimit := middleware.RateLimit(rt.generalLimiter, identity.IPFromRequest, generalLimitMessage)
	aiLimit := middleware.RateLimit(rt.aiLimiter, func(r *http.Request) string {
		return identity.UserIDFromContext(r.Context())
	}, aiLimitMessage)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(rt.accessLog, identity.AccessTokenParam))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	rt.health.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(generalLimit)
		rt.api.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware(rt.verifier))
			rt.api.RegisterRoutes(r, aiLimit)
			rt.tutor.RegisterRoutes(r, aiLimit)
		})
	})

	r.With(identity.WebSocketMiddleware(rt.verifier)).Get("/ws/ai-tutor", rt.ws.ServeHTTP)
	return r
}

func newVerifier(cfg *config.Config) identity.Verifier {
	if cfg.Auth.Provider == config.AuthDev {
		slog.Warn("Using development token verifier; do not run this in production")
		return identity.DevVerifier{}
	}
	return identity.NewSupabaseVerifier(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Auth.Timeout)
}

func newReasoningClient(cfg *config.Config, logger *slog.Logger) (reasoning.Client, func(), error) {
	switch cfg.Reasoning.Provider {
	case config.ReasoningGRPC:
		slog.Info("Connecting to reasoning service via gRPC", "address", cfg.Reasoning.GRPCAddr)
		c, err := reasoning.NewGrpcClient(reasoning.DefaultGrpcClientConfig(cfg.Reasoning.GRPCAddr), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect reasoning service: %w", err)
		}
		return c, c.Close, nil
	case config.ReasoningMock:
		slog.Warn("Using mock reasoning client")
		return reasoning.NewMockClient(), func() {}, nil
	default:
		return reasoning.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.Reasoning.Timeout), func() {}, nil
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	if cfg.IsDevelopment() {
		return []string{cfg.FrontendURL, "*"}
	}
	return []string{cfg.FrontendURL}
}
