// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/sagenote/internal/api"
	"github.com/starford/sagenote/internal/assets"
	"github.com/starford/sagenote/internal/mcpserver"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/metrics"
	"github.com/starford/sagenote/internal/repository"
	"github.com/starford/sagenote/internal/sse"
	"github.com/starford/sagenote/internal/store"
	"github.com/starford/sagenote/internal/tui"
	"github.com/starford/sagenote/internal/viewmodel"
)

const (
	shutdownTimeout = 10 * time.Second
	poolStatsPeriod = 15 * time.Second
)

// appContext holds the long-lived collaborators every front end shares. It is
// built once per process and passed down explicitly.
type appContext struct {
	cfg     *Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   *store.Store
	files   *assets.Dir
	repo    *repository.Repository
}

func (c *appContext) Close() {
	if err := c.store.Close(); err != nil {
		c.logger.Error("close store failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap opens the store and the asset directory and wires the repository.
func (a *application) bootstrap(ctx context.Context) (*appContext, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("assets_dir", cfg.Assets.Dir),
		slog.Bool("auth_enabled", cfg.Auth.AuthEnabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m := metrics.New()

	files, err := assets.NewDir(cfg.Assets.Dir)
	if err != nil {
		return nil, fmt.Errorf("init assets: %w", err)
	}

	st, err := store.Open(ctx, cfg.SQLite.Path, store.WithObserver(m))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	repo := repository.New(st,
		repository.WithAssets(files),
		repository.WithLogger(logger))

	c := &appContext{cfg: cfg, logger: logger, metrics: m, store: st, files: files, repo: repo}
	if cfg.Assets.SweepOrphans {
		c.sweep(ctx)
	}
	return c, nil
}

// sweep removes asset files no note references.
func (c *appContext) sweep(ctx context.Context) {
	refs, err := c.repo.ReferencedAssets(ctx)
	if err != nil {
		c.logger.Warn("orphan sweep skipped", slog.String("error", err.Error()))
		return
	}
	removed, err := assets.Sweep(ctx, c.files, refs, c.cfg.Assets.SweepGrace, c.logger)
	if err != nil {
		c.logger.Warn("orphan sweep failed", slog.String("error", err.Error()))
	}
	c.metrics.AssetsSwept.Add(float64(len(removed)))
	c.logger.Info("orphan sweep finished", slog.Int("removed", len(removed)))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg, logger := c.cfg, c.logger

	// SSE broker for asset directory events.
	broker := sse.NewBroker()
	defer broker.Close()

	h := api.NewHandler(c.repo, c.files,
		api.WithBroker(broker),
		api.WithStreamObserver(c.metrics),
		api.WithHandlerLogger(logger))
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newRootRouter(c, apiRouter),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start asset watcher with SSE and metrics callbacks.
	g.Go(func() error {
		err := assets.Watch(gCtx, c.files, logger, func(kind, name string) {
			c.metrics.AssetEvent(kind, name)
			broker.PublishAssetEvent(kind, name)
		})
		if err != nil {
			logger.Warn("asset watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Sample connection pool statistics.
	g.Go(func() error {
		t := time.NewTicker(poolStatsPeriod)
		defer t.Stop()
		for {
			c.metrics.RecordDBPoolStats(c.store.Stats())
			select {
			case <-gCtx.Done():
				return nil
			case <-t.C:
			}
		}
	})

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Event streams end with the broker, so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been asked to stop, so
// the watcher and the stats sampler exit too.
var errShutdown = errors.New("shutdown")

// newRootRouter mounts health probes, metrics and the API.
func newRootRouter(c *appContext, apiRouter http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(c.metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.store.Ping(ctx); err != nil {
			c.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(c.repo, c.files).ServeStdio()
}

// RunTUI starts the terminal UI.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	vm := viewmodel.New(c.repo, c.logger)
	defer vm.Close()

	var tuiOpts []tui.Option
	if rec, play := c.cfg.Media.RecordCommand, c.cfg.Media.PlayCommand; len(rec) > 0 || len(play) > 0 {
		var recorder media.Recorder
		if len(rec) > 0 {
			recorder = media.CommandRecorder{Argv: rec}
		}
		var player media.Player
		if len(play) > 0 {
			player = media.CommandPlayer{Argv: play}
		}
		session := media.NewSession(c.files, recorder, player, media.WithSessionLogger(c.logger))
		defer session.Close()
		tuiOpts = append(tuiOpts, tui.WithAudio(session))
	}

	return tui.Run(ctx, vm, tuiOpts...)
}
