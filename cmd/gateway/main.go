// Package main is the entry point for the eventgate HTTP gateway.
//
// It loads configuration and the channel file, connects the configured
// secret, state and sink backends, mounts the ingress and component routes,
// and serves until SIGINT or SIGTERM.
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

	"golang.org/x/sync/errgroup"

	"eventgate/internal/api"
	"eventgate/internal/bootstrap"
	"eventgate/internal/components"
	"eventgate/internal/config"
	"eventgate/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(bootstrap.ParameterSource())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := bootstrap.NewLogger(cfg.LogLevel)
	logger.Info("eventgate gateway starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
	)

	channels, err := config.LoadChannels(cfg.Channels.File)
	if err != nil {
		return err
	}
	defaultTenant, err := cfg.DefaultTenant()
	if err != nil {
		return fmt.Errorf("default tenant: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := bootstrap.LoadAWS(ctx, cfg)
	if err != nil {
		return err
	}
	appLogger := types.NewSlogLogger(logger)
	recorder := bootstrap.NewRecorder(cfg, awsCfg, appLogger)

	provider, err := bootstrap.NewSecretProvider(cfg, awsCfg, recorder)
	if err != nil {
		return err
	}
	store, err := bootstrap.NewStateStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting state backend: %w", err)
	}
	defer store.Close()

	publisher, err := bootstrap.NewPublisher(cfg, awsCfg, appLogger)
	if err != nil {
		return err
	}
	outbound, err := bootstrap.NewTransport(cfg, "gateway")
	if err != nil {
		return err
	}

	srv, err := api.NewServer(cfg, channels, components.Deps{
		Secrets:       provider,
		Store:         store.Store,
		Transport:     outbound,
		Requeuer:      bootstrap.NewRequeuer(cfg, awsCfg, appLogger),
		Recorder:      recorder,
		Logger:        appLogger,
		Clock:         types.RealClock{},
		DefaultTenant: defaultTenant,
	}, publisher, logger)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}
	srv.Metrics = recorder
	for _, p := range store.Probes {
		srv.HealthProbes = append(srv.HealthProbes, api.ProbeFunc{ProbeName: p.Name, Fn: p.Check})
	}
	srv.MountRoutes()

	return serve(ctx, srv, cfg, logger)
}

// serve runs the HTTP server until ctx is cancelled, then drains it within
// the configured shutdown timeout.
func serve(ctx context.Context, srv *api.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}
