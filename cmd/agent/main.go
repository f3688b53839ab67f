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

	"github.com/crosspost-dev/crosspost/internal/automation"
	"github.com/crosspost-dev/crosspost/internal/bluesky"
	"github.com/crosspost-dev/crosspost/internal/bus"
	"github.com/crosspost-dev/crosspost/internal/config"
	"github.com/crosspost-dev/crosspost/internal/delivery"
	"github.com/crosspost-dev/crosspost/internal/domain"
	"github.com/crosspost-dev/crosspost/internal/imaging"
	"github.com/crosspost-dev/crosspost/internal/opengraph"
	"github.com/crosspost-dev/crosspost/internal/postbuild"
	"github.com/crosspost-dev/crosspost/internal/store"
	"github.com/crosspost-dev/crosspost/internal/tid"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("opened store", "path", cfg.DatabasePath)

	preferences := st.Preferences(domain.Preference{
		BlueskyHandle:      cfg.BlueskyHandle,
		BlueskyAppPassword: cfg.BlueskyAppPassword,
	})
	backups := st.Backups(logger)

	builder := postbuild.NewBuilder(
		imaging.NewOptimizer(cfg.ImageMaxDimension, cfg.ImageMaxBytes),
		opengraph.NewResolver(),
		logger,
	)
	poster := bluesky.NewPoster(cfg.BlueskyPDS, tid.New(), logger)

	server := bus.NewServer(logger)

	var trigger domain.Trigger
	switch cfg.AutomationMode {
	case "browser":
		trigger = automation.NewXTrigger(cfg.BrowserURL, cfg.Headless, logger)
	case "surface":
		trigger = bus.NewSurfaceTrigger(server)
	default:
		return fmt.Errorf("unknown automation mode %q", cfg.AutomationMode)
	}

	engine := delivery.NewEngine(delivery.Params{
		Poster:      poster,
		Trigger:     trigger,
		Backup:      backups,
		Preferences: preferences,
		Builder:     builder,
		Notifier:    server,
		Watchdog:    cfg.SendTimeout,
		Logger:      logger,
	})
	server.Attach(engine)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("delivery engine exited with error", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/bus", server)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("agent started", "addr", cfg.ListenAddr, "automation", cfg.AutomationMode)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
