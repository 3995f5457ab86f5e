package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/pathway-engine/internal/api"
	"github.com/terra-clan/pathway-engine/internal/auth"
	"github.com/terra-clan/pathway-engine/internal/catalog"
	"github.com/terra-clan/pathway-engine/internal/config"
	"github.com/terra-clan/pathway-engine/internal/feed"
	"github.com/terra-clan/pathway-engine/internal/health"
	"github.com/terra-clan/pathway-engine/internal/readiness"
	"github.com/terra-clan/pathway-engine/internal/rollover"
	"github.com/terra-clan/pathway-engine/internal/storage"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

// store is what the engine needs from a storage backend
type store interface {
	storage.Repository
	api.ClientStore
}

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting pathway-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"timezone", cfg.Rollover.Timezone,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := health.NewRegistry(5 * time.Second)

	repo, err := openStore(initCtx, cfg.Database, registry)
	if err != nil {
		slog.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	registry.Register("database", health.CheckFunc(repo.Ping))
	slog.Info("database connected successfully")

	changes, err := openFeed(initCtx, cfg.Redis)
	if err != nil {
		slog.Error("failed to connect change feed", "error", err)
		os.Exit(1)
	}
	registry.Register("feed", changes)

	cat, err := catalog.LoadFromDir(cfg.Catalog.Dir)
	if err != nil {
		slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}

	manager := tracker.NewService(repo, changes, cat, tracker.Options{
		Policy:   readiness.Policy{RejectNegative: cfg.Readiness.RejectNegativePoints},
		Location: cfg.Location(),
	})

	tokens := auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer}
	if !tokens.Enabled() {
		slog.Warn("AUTH_JWT_SECRET not set, trainee tokens are disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Day rollover keeps open dashboards on the right "today"
	rollover.NewWorker(changes, cfg.Rollover.Interval, cfg.Location()).Start(ctx)

	server := api.NewServer(cfg.Server, manager, cat, registry, repo, tokens)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Stops the rollover worker and ends live streams
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := changes.Close(); err != nil {
		slog.Error("feed close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("pathway-engine stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, registry *health.Registry) (store, error) {
	switch cfg.Driver {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		slog.Info("running database migrations", "dir", cfg.MigrationsDir)
		if err := storage.MigrateFromDSN(ctx, cfg.DSN, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:          cfg.DSN,
			MaxOpenConns: int32(cfg.MaxOpenConns),
			MaxIdleConns: int32(cfg.MaxIdleConns),
		})
		if err != nil {
			return nil, err
		}

		// Readiness probe on its own lib/pq connection, outside the pool
		checker, err := health.NewPostgresChecker(cfg.DSN)
		if err != nil {
			slog.Warn("postgres checker unavailable", "error", err)
		} else {
			registry.Register("postgres", checker)
		}
		return repo, nil
	}
}

func openFeed(ctx context.Context, cfg config.RedisConfig) (feed.Feed, error) {
	if cfg.Address == "" {
		slog.Info("using in-process change feed")
		return feed.NewLocalFeed(), nil
	}
	f, err := feed.NewRedisFeed(ctx, feed.RedisConfig{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
