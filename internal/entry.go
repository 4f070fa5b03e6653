// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ledger/internal/api"
	"github.com/starford/ledger/internal/auth"
	"github.com/starford/ledger/internal/index"
	"github.com/starford/ledger/internal/ledger"
	"github.com/starford/ledger/internal/mcpserver"
	"github.com/starford/ledger/internal/snapshot"
	"github.com/starford/ledger/internal/sse"
	"github.com/starford/ledger/internal/storage"
)

// runtime holds the components shared by every entry point.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	regions *storage.FS
	db      *index.DB
	svc     *ledger.Service
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

// setup applies opts, configures logging and opens storage and the index.
// events, if non-nil, receives ledger mutation events.
func setup(opts []Option, events ledger.EventCallback) (*runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	regions, err := storage.NewFS(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, regions, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svcOpts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithDefaults(cfg.Ledger.Defaults),
		ledger.WithLimits(cfg.Ledger.Limits),
	}
	if events != nil {
		svcOpts = append(svcOpts, ledger.WithEvents(events))
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		regions: regions,
		db:      db,
		svc:     ledger.NewService(regions, db, svcOpts...),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(opts, func(kind, storeID string, idx uint64) {
		if kind == ledger.EventStoreCreated {
			broker.PublishStoreEvent(kind, storeID)
			return
		}
		broker.PublishRecordEvent(kind, storeID, idx)
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	verifier := auth.NewVerifier(cfg.Auth.SignatureMaxAge)
	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, verifier, broker)

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
		if _, err := rt.db.AllStoreChecksums(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reindex regions changed on disk by anything other than this process.
	g.Go(func() error {
		err := index.Watch(gCtx, rt.db, rt.regions, cfg.Storage.Path, logger, func(kind, storeID string) {
			broker.PublishStoreEvent("store."+kind, storeID)
		})
		if err != nil {
			logger.Warn("watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

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
		defer signal.Stop(quit)

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

		// Stops the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the read-only MCP tools on stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...), nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc).ServeStdio()
}

// Export writes a compressed snapshot of one store to w.
func Export(ctx context.Context, storeID string, w io.Writer, opts ...Option) error {
	rt, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	region, err := rt.svc.ExportRegion(ctx, storeID)
	if err != nil {
		return fmt.Errorf("export %s: %w", storeID, err)
	}
	if err := snapshot.Write(w, storeID, region); err != nil {
		return err
	}
	rt.logger.Info("store exported", slog.String("store", storeID), slog.Int("region_bytes", len(region)))
	return nil
}

// Import restores a snapshot read from r as a new store. An empty storeID
// keeps the ID recorded in the snapshot.
func Import(ctx context.Context, storeID string, r io.Reader, opts ...Option) (*ledger.StoreInfo, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	id, region, err := snapshot.Read(r)
	if err != nil {
		return nil, err
	}
	if storeID == "" {
		storeID = id
	}
	return rt.svc.ImportRegion(ctx, storeID, region)
}
