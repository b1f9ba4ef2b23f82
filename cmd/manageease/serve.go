package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"manageease/internal/auth"
	"manageease/internal/server"
	"manageease/internal/storage/sqlite"
	"manageease/internal/tasks"
	"manageease/internal/users"
	"manageease/internal/util"
)

const shutdownTimeout = 10 * time.Second

type serveConfig struct {
	addr          string
	staticDir     string
	corsOrigins   string
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	rateLimit     int
	rateWindow    time.Duration
	redisAddr     string
	env           string
}

func serveCmd(opts *options) *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and serve the frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.addr, "addr", util.EnvOrDefault("MANAGEEASE_ADDR", ":8080"), "HTTP listen address")
	f.StringVar(&cfg.staticDir, "static", util.EnvOrDefault("MANAGEEASE_STATIC_DIR", "web/dist"), "Directory with built frontend")
	f.StringVar(&cfg.corsOrigins, "cors-origin", util.EnvOrDefault("MANAGEEASE_CORS_ORIGIN", "http://localhost:5173"), "Comma separated list of allowed CORS origins")
	f.StringVar(&cfg.accessSecret, "access-secret", util.EnvOrDefault("JWT_ACCESS_SECRET", ""), "Secret used to sign access tokens")
	f.StringVar(&cfg.refreshSecret, "refresh-secret", util.EnvOrDefault("JWT_REFRESH_SECRET", ""), "Secret used to sign refresh tokens")
	f.DurationVar(&cfg.accessTTL, "access-ttl", util.EnvDuration("MANAGEEASE_ACCESS_TTL", 15*time.Minute), "Access token lifetime")
	f.DurationVar(&cfg.refreshTTL, "refresh-ttl", util.EnvDuration("MANAGEEASE_REFRESH_TTL", 7*24*time.Hour), "Refresh token lifetime")
	f.IntVar(&cfg.rateLimit, "rate-limit", util.EnvInt("MANAGEEASE_RATE_LIMIT", 100), "Requests allowed per client in each rate window (0 disables)")
	f.DurationVar(&cfg.rateWindow, "rate-window", util.EnvDuration("MANAGEEASE_RATE_WINDOW", 15*time.Minute), "Rate limit window")
	f.StringVar(&cfg.redisAddr, "redis", util.EnvOrDefault("MANAGEEASE_REDIS_ADDR", ""), "Redis address for a shared rate limit; empty keeps it in process")
	f.StringVar(&cfg.env, "env", util.EnvOrDefault("MANAGEEASE_ENV", "development"), "Runtime environment; production enables secure cookies")

	return cmd
}

func runServe(opts *options, cfg *serveConfig) error {
	logger := opts.logger()
	logger.Info("ManageEase", slog.String("version", version), slog.String("env", cfg.env))

	if cfg.accessSecret == "" || cfg.refreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if cfg.accessSecret == cfg.refreshSecret {
		logger.Warn("access and refresh tokens share a secret")
	}

	store, err := sqlite.Open(opts.dbPath, logger)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer store.Close()

	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.accessSecret,
		RefreshSecret: cfg.refreshSecret,
		AccessTTL:     cfg.accessTTL,
		RefreshTTL:    cfg.refreshTTL,
	})
	userSvc := users.NewService(store, auth.NewPasswordHasher(auth.DefaultBcryptCost), tokens, logger)
	taskSvc := tasks.NewService(store, store, logger)

	limiter, redisClient, err := buildLimiter(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(store, taskSvc, userSvc, server.Config{
		StaticDir:     cfg.staticDir,
		AllowOrigins:  util.SplitList(cfg.corsOrigins),
		SecureCookies: cfg.env == "production",
		RateLimiter:   limiter,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	ops := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	}
	if redisClient != nil {
		ops["redis"] = func(context.Context) error {
			return redisClient.Close()
		}
	}

	exitCode := <-gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)
	logger.Info("server stopped", slog.Int("exit_code", exitCode))
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return nil
}

// buildLimiter picks the Redis limiter when an address is configured and
// reachable, and the in-process one otherwise.
func buildLimiter(cfg *serveConfig, logger *slog.Logger) (gin.HandlerFunc, *redis.Client, error) {
	if cfg.rateLimit <= 0 {
		logger.Warn("rate limiting disabled")
		return nil, nil, nil
	}
	limit := server.RateLimit{Requests: cfg.rateLimit, Window: cfg.rateWindow}

	if cfg.redisAddr == "" {
		return server.LocalRateLimiter(limit), nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.redisAddr, err)
	}
	logger.Info("using shared rate limiter", slog.String("redis", cfg.redisAddr))
	return server.NewRedisRateLimiter(client, "manageease:rate", limit, logger).Middleware(), client, nil
}
