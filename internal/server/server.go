// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/database"
	"codeberg.org/oliverandrich/infographic-api/internal/handlers"
	"codeberg.org/oliverandrich/infographic-api/internal/i18n"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	authsvc "codeberg.org/oliverandrich/infographic-api/internal/services/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/services/email"
	"codeberg.org/oliverandrich/infographic-api/internal/services/storage"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"codeberg.org/oliverandrich/infographic-api/internal/validation"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const (
	shutdownTimeout  = 10 * time.Second
	redisPingTimeout = 3 * time.Second
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct { //nolint:govet // fieldalignment: readability over optimization
	Repo           *repository.Repository
	Tokens         *token.Service
	Auth           *authsvc.Service
	Uploader       handlers.Uploader // nil disables image uploads
	RateLimitStore echomw.RateLimiterStore
	Metrics        *middleware.Metrics
	Logger         *slog.Logger
}

// New assembles the Echo instance: pipeline, routes and error handler.
func New(cfg *config.Config, deps *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = apierror.NewHandler(cfg.IsProduction(), deps.Logger)
	e.IPExtractor = ipExtractor(cfg)

	setupMiddleware(e, cfg, deps)
	setupRoutes(e, cfg, deps)
	return e
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	logger := NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config_warning", "message", w)
	}

	logger.Info("starting server",
		"env", cfg.Env,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	deps, cleanup, err := buildDeps(ctx, cfg, repository.New(db), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return startWithGracefulShutdown(ctx, New(cfg, deps), cfg, logger)
}

// buildDeps wires services from the configuration. Optional collaborators
// fall back to local implementations when they are not configured.
func buildDeps(ctx context.Context, cfg *config.Config, repo *repository.Repository, logger *slog.Logger) (*Deps, func(), error) {
	cleanup := func() {}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		generated, err := token.GenerateSigningKey(token.SigningKeyLength)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = generated
		logger.Warn("jwt-secret not set, using an ephemeral secret; sessions end with the process")
	}
	tokens, err := token.NewService(secret, cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}

	var sender email.Sender = email.NewLogSender(logger)
	if cfg.SMTP.Enabled() {
		smtp, smtpErr := email.NewSMTPSender(&cfg.SMTP)
		if smtpErr != nil {
			return nil, nil, fmt.Errorf("failed to configure smtp: %w", smtpErr)
		}
		sender = smtp
	}

	deps := &Deps{
		Repo:    repo,
		Tokens:  tokens,
		Auth:    authsvc.NewService(repo, email.NewService(sender), cfg, logger),
		Metrics: middleware.NewMetrics(),
		Logger:  logger,
	}

	if cfg.Storage.Enabled() {
		uploads, storageErr := storage.NewService(ctx, &cfg.Storage)
		if storageErr != nil {
			return nil, nil, fmt.Errorf("failed to configure storage: %w", storageErr)
		}
		deps.Uploader = uploads
	} else {
		logger.Warn("object storage not configured, image uploads are disabled")
	}

	if cfg.Redis.URL == "" {
		deps.RateLimitStore = middleware.NewSlidingWindowStore(cfg.RateLimit.Max, cfg.RateLimit.Window)
		return deps, cleanup, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis-url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		logger.Warn("redis not reachable, rate limiting fails open until it is", "error", pingErr)
	}
	deps.RateLimitStore = middleware.NewRedisStore(client, cfg.RateLimit.Max, cfg.RateLimit.Window, logger)
	cleanup = func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Error("failed to close redis client", "error", closeErr)
		}
	}
	return deps, cleanup, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config, logger *slog.Logger) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Channel for server errors
	errChan := make(chan error, 1)

	if cfg.Server.TLSEnabled() {
		tlsConfig, err := loadTLSConfig(&cfg.Server, logger)
		if err != nil {
			return fmt.Errorf("TLS setup failed: %w", err)
		}
		go func() {
			logger.Info("Server running", "url", cfg.Server.BaseURL, "tls", true)
			if err := startTLSServer(e, addr, tlsConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	} else {
		go func() {
			logger.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("shutting down server", "reason", ctx.Err())
	case err := <-errChan:
		logger.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
