// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/veidt/skald/internal/api"
	"github.com/veidt/skald/internal/index"
	"github.com/veidt/skald/internal/mcpserver"
	"github.com/veidt/skald/internal/noteservice"
	"github.com/veidt/skald/internal/sse"
	"github.com/veidt/skald/internal/storage"
)

// Run starts the HTTP server, file watcher, and SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("link_refs_auto_sync", cfg.LinkRefs.AutoSync),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, store, db, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Vault.Path)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthHandler)
	r.Get("/health/ready", healthHandler)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher: SSE events on every index change, plus optional
	// link-reference auto-sync for created/updated notes.
	var refSync index.RefSyncer
	if cfg.LinkRefs.AutoSync {
		refSync = func(path string) {
			res, syncErr := svc.SyncLinkRefs(gCtx, path, false)
			if syncErr != nil {
				logger.Warn("auto ref sync failed", slog.String("path", path), slog.String("error", syncErr.Error()))
				return
			}
			if res.Changed {
				logger.Debug("auto ref sync applied", slog.String("path", path))
				broker.PublishRefSync(path)
			}
		}
	}
	g.Go(func() error {
		return index.Watch(gCtx, db, store, cfg.Vault.Path, logger, broker.PublishNoteEvent, refSync)
	})

	// HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shutdown on signal or group failure.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunSyncRefs rebuilds the index from disk and regenerates link-reference
// blocks across the whole vault. Used by the sync-refs CLI command.
func RunSyncRefs(ctx context.Context, cfg *Config, force bool) error {
	logger := newLogger(cfg)

	svc, store, db, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		return fmt.Errorf("index sync: %w", err)
	}

	changed, err := svc.SyncAllLinkRefs(ctx, force, logger)
	if err != nil {
		return fmt.Errorf("sync link refs: %w", err)
	}
	logger.Info("link references synchronized", slog.Int("changed", changed))
	return nil
}

// RunMCP serves the MCP tools over stdio. The structured logger goes to
// stderr because stdout carries the MCP transport.
func RunMCP(_ context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, store, db, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, store).ServeStdio()
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildService(cfg *Config) (*noteservice.Service, storage.Provider, *index.DB, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}

	return noteservice.NewService(store, db), store, db, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
