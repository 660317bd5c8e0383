package main

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

	"github.com/example/mockserver/internal/auth"
	cfg "github.com/example/mockserver/internal/config"
	"github.com/example/mockserver/internal/datastore"
	"github.com/example/mockserver/internal/token"
	"github.com/example/mockserver/internal/tokenstore"
	"github.com/example/mockserver/internal/users"
)

func main() {
	if err := cfg.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load the env file", "err", err)
		os.Exit(1)
	}
	c, err := cfg.New()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, c.LogLevel, c.Production())
	slog.SetDefault(logger)

	if err := run(c, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(c *cfg.Config, logger *slog.Logger) error {
	ctx := context.Background()

	backend, err := openBackend(c, logger)
	if err != nil {
		return err
	}
	store, err := datastore.Open(ctx, backend)
	if err != nil {
		backend.Close()
		return err
	}
	defer store.Close()

	refresh, err := openRefreshStore(c, logger)
	if err != nil {
		return err
	}
	defer refresh.Close()

	codec := token.NewCodec(token.WithSecret(c.TokenSecret))
	if !codec.Signed() {
		logger.Warn("TOKEN_SECRET not set; issuing unsigned tokens")
	}

	app := &App{
		Auth:        auth.NewService(users.NewDirectory(store), refresh, codec, logger),
		Store:       store,
		Log:         logger,
		CORSOrigins: c.CORSOrigins,
	}
	if c.RateLimitPerMinute > 0 {
		app.rateLimiter = NewRateLimiter(c.RateLimitPerMinute)
	}

	srv := &http.Server{Handler: app.Router(), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", fmt.Sprintf("http://localhost:%s", c.Port), "db", c.DBAdapter, "refresh_store", c.RefreshStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("server exited properly")
	return nil
}

func openBackend(c *cfg.Config, logger *slog.Logger) (datastore.Backend, error) {
	switch c.DBAdapter {
	case "file":
		return datastore.NewFile(c.DBFile), nil
	case "memory":
		logger.Info("using in-memory datastore; changes are lost on exit")
		return datastore.NewMemory(nil), nil
	case "sqlite":
		s, err := datastore.NewSQLite(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		return s, nil
	case "postgres":
		logger.Info("applying database migrations", "dir", c.MigrationsDir)
		if err := datastore.ApplyMigrations(c.MigrationsDir, c.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := datastore.NewPostgres(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unsupported DB_ADAPTER: %s", c.DBAdapter)
}

func openRefreshStore(c *cfg.Config, logger *slog.Logger) (tokenstore.Store, error) {
	if c.RefreshStore == "redis" {
		r, err := tokenstore.NewRedis(c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("refresh tokens stored in redis", "addr", c.RedisAddr)
		return r, nil
	}
	return tokenstore.NewMemory(), nil
}
