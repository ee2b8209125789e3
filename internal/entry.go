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

	"github.com/starford/askwiki/internal/api"
	"github.com/starford/askwiki/internal/reload"
	"github.com/starford/askwiki/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.loggerTo(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.KnowledgeBase.Source),
		slog.Int("heading_level", cfg.KnowledgeBase.HeadingLevel),
		slog.Float64("threshold", cfg.KnowledgeBase.Threshold),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker receives every reload outcome.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := bootstrap(ctx, cfg, logger, bootstrapOptions{
		recordGenerations: true,
		listeners:         []reload.Listener{broker.PublishReload},
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if k := rt.holder.Load(); k == nil || k.Len() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no knowledge base"}`))
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

	// Start source watcher.
	if cfg.KnowledgeBase.Watch {
		g.Go(func() error {
			if err := rt.reloader.Watch(gCtx, rt.src.Path()); err != nil {
				logger.Warn("watcher: disabled", slog.String("error", err.Error()))
			}
			return nil
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

	// Handle signals. SIGHUP forces a rebuild; SIGINT and SIGTERM shut down.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(quit)

	wait:
		for {
			select {
			case sig := <-quit:
				if sig == syscall.SIGHUP {
					logger.Info("Received SIGHUP, reloading knowledge base")
					_, _ = rt.reloader.Reload(gCtx, true)
					continue
				}
				logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
				break wait
			case <-gCtx.Done():
				logger.Info("Context cancelled, initiating shutdown")
				break wait
			}
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// SSE handlers block until their client leaves; closing the broker ends them.
		broker.Close()

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
