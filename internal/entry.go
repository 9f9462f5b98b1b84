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

	"github.com/novatask/novatask/internal/api"
	"github.com/novatask/novatask/internal/index"
	"github.com/novatask/novatask/internal/mcpserver"
	"github.com/novatask/novatask/internal/models"
	"github.com/novatask/novatask/internal/reminder"
	"github.com/novatask/novatask/internal/sse"
	"github.com/novatask/novatask/internal/storage"
	"github.com/novatask/novatask/internal/taskservice"
	"github.com/novatask/novatask/internal/watcher"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Store.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, db, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// SSE broker; mutation events from the service fan out to clients.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc.SetEventFunc(func(kind string, task *models.Task) {
		if task != nil {
			broker.PublishTaskEvent(kind, task)
			return
		}
		broker.PublishTaskEvent(kind, map[string]string{})
	})

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

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

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start the data-file watcher so external edits are picked up.
	g.Go(func() error {
		if err := watcher.Watch(gCtx, svc, svc.DataPath(), logger); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start the reminder scheduler.
	if cfg.Reminders.Enabled {
		rem := reminder.New(svc, cfg.Reminders.Lookahead, logger, func(kind string, payload any) {
			switch kind {
			case "due":
				broker.PublishTaskEvent("due", payload)
			case "summary":
				broker.Publish(sse.Event{Type: "summary", Data: payload})
			}
		})
		sched := reminder.NewScheduler(time.Local)
		if _, err := sched.ScheduleInterval(cfg.Reminders.Interval, func() {
			if err := rem.Scan(gCtx, time.Now()); err != nil {
				logger.Warn("reminder scan failed", slog.String("error", err.Error()))
			}
		}); err != nil {
			return fmt.Errorf("schedule reminder scan: %w", err)
		}
		if cfg.Reminders.DailyAt != "" {
			if _, err := sched.ScheduleDaily(cfg.Reminders.DailyAt, func() {
				if _, err := rem.DailySummary(gCtx, time.Now()); err != nil {
					logger.Warn("daily summary failed", slog.String("error", err.Error()))
				}
			}); err != nil {
				return fmt.Errorf("schedule daily summary: %w", err)
			}
		}
		sched.Start()
		defer sched.Stop()
		logger.Info("Reminder scheduler started",
			slog.Duration("interval", cfg.Reminders.Interval),
			slog.String("daily_at", cfg.Reminders.DailyAt))
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

// RunMCP starts the MCP stdio server with the given options.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	// MCP uses stdout for the protocol, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, db, err := buildService(app.config, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return mcpserver.New(svc).ServeStdio()
}

// buildService creates the storage, index, and task service shared by the
// HTTP and MCP entrypoints.
func buildService(cfg *Config, logger *slog.Logger) (*taskservice.Service, *index.DB, error) {
	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.NewFile(cfg.Store.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	svc, err := taskservice.NewService(store, db, logger)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init service: %w", err)
	}
	return svc, db, nil
}
