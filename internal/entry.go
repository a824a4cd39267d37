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

	"github.com/starford/sunna/internal/api"
	"github.com/starford/sunna/internal/builder"
	"github.com/starford/sunna/internal/importmap"
	"github.com/starford/sunna/internal/mcpserver"
	"github.com/starford/sunna/internal/mirror"
	"github.com/starford/sunna/internal/modurl"
	"github.com/starford/sunna/internal/sse"
	"github.com/starford/sunna/internal/store"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
	"github.com/starford/sunna/internal/workbench"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. The MCP transport owns stdout, so
	// logs go to stderr in that mode.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project", cfg.Project.ID),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("preview_entry", cfg.Preview.Entry),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize SQLite persistence.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build pipeline: tree, transpile cache, module allocator, import maps,
	// coordinator.
	tree := vfs.NewTree()
	cache := transpile.NewCache()
	alloc := modurl.NewAllocator()
	maps := importmap.NewBuilder(cfg.Preview.RegistryBase)
	coord := builder.New(tree, cache, alloc, maps, cfg.Preview.Entry, logger, func(ev builder.Event) {
		broker.Publish(sse.Event{Type: ev.Type, Data: ev})
	})
	defer coord.Quiesce()

	svc := workbench.NewService(cfg.Project.ID, cfg.Project.Name, tree, cache, coord, db, logger, broker.PublishFileEvent)

	if err := svc.LoadPersisted(ctx); err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	// Mirror seeding happens before serving so the first preview covers
	// what is on disk.
	if cfg.Mirror.Enabled {
		n, seedErr := mirror.Seed(ctx, svc, cfg.Mirror.Path)
		if seedErr != nil {
			return fmt.Errorf("seed mirror: %w", seedErr)
		}
		logger.Info("mirror: seeded", slog.String("root", cfg.Mirror.Path), slog.Int("files", n))
	}

	if app.mcp {
		return runMCP(ctx, svc, logger)
	}

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Transpiled module artifacts, addressed by content hash. Safe to cache
	// forever: an edit allocates a new URL.
	r.Get(modurl.PathPrefix+"*", func(w http.ResponseWriter, req *http.Request) {
		code, codeErr := alloc.Code(req.URL.Path)
		if codeErr != nil {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = w.Write([]byte(code))
	})

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start disk mirror watcher.
	if cfg.Mirror.Enabled {
		g.Go(func() error {
			return mirror.Watch(gCtx, svc, cfg.Mirror.Path, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

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

// runMCP serves workbench tools over stdio until the transport closes.
func runMCP(ctx context.Context, svc *workbench.Service, logger *slog.Logger) error {
	logger.Info("Starting MCP stdio server")
	srv := mcpserver.New(svc)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}
