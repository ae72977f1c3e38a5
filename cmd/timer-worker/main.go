// Package main is the entrypoint for the timer worker Lambda.
//
// EventBridge scheduled rules invoke the worker with a ScheduleEvent naming a
// schedule from the channel file. The handler fires it through the timer
// component and publishes the resulting envelope to the configured sink.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"eventgate/internal/bootstrap"
	"eventgate/internal/channels/timer"
	"eventgate/internal/components"
	"eventgate/internal/config"
	"eventgate/internal/sink"
	"eventgate/internal/types"
)

// ScheduleEvent is the constant input configured on each EventBridge rule.
// Tenant falls back to the configured default tenant when absent.
type ScheduleEvent struct {
	Schedule string           `json:"schedule"`
	Tenant   *types.TenantCtx `json:"tenant,omitempty"`
}

// Firer turns a schedule into an envelope.
type Firer interface {
	Fire(ctx context.Context, in components.TimerFireInput) (*components.EventResult, error)
}

// Handler holds the cold-start dependencies reused across invocations.
type Handler struct {
	Timer     Firer
	Schedules []timer.Schedule
	Publisher sink.Publisher
	Logger    *slog.Logger
}

// Handle fires one schedule and publishes the envelope. Errors are returned to
// Lambda so EventBridge retries the invocation.
func (h *Handler) Handle(ctx context.Context, event ScheduleEvent) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if event.Schedule == "" {
		return "", errors.New("empty schedule in scheduled event")
	}

	res, err := h.Timer.Fire(ctx, components.TimerFireInput{
		Config:   components.TimerConfig{Schedules: h.Schedules},
		Schedule: event.Schedule,
		Tenant:   event.Tenant,
	})
	if err != nil {
		logger.ErrorContext(ctx, "schedule fire failed",
			"schedule", event.Schedule,
			"error_kind", string(types.KindOf(err)),
			"error", err,
		)
		return "", fmt.Errorf("firing schedule %s: %w", event.Schedule, err)
	}

	if err := h.Publisher.Publish(ctx, res.Event); err != nil {
		logger.ErrorContext(ctx, "envelope publish failed",
			"schedule", event.Schedule,
			"event_id", res.Event.ID,
			"error", err,
		)
		return "", fmt.Errorf("publishing envelope %s: %w", res.Event.ID, err)
	}

	logger.InfoContext(ctx, "schedule fired",
		"schedule", event.Schedule,
		"event_id", res.Event.ID,
		"topic", res.Event.Topic,
	)
	return fmt.Sprintf("fired %s: %s", event.Schedule, res.Event.ID), nil
}

func main() {
	handler, err := coldStart(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	lambda.Start(handler.Handle)
}

func coldStart(ctx context.Context) (*Handler, error) {
	cfg, err := config.LoadConfig(bootstrap.ParameterSource())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := bootstrap.NewLogger(cfg.LogLevel)
	logger.Info("timer worker initializing (cold start)", "build", cfg.Build.String())

	channels, err := config.LoadChannels(cfg.Channels.File)
	if err != nil {
		return nil, err
	}
	defaultTenant, err := cfg.DefaultTenant()
	if err != nil {
		return nil, fmt.Errorf("default tenant: %w", err)
	}
	awsCfg, err := bootstrap.LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}

	appLogger := types.NewSlogLogger(logger)
	publisher, err := bootstrap.NewPublisher(cfg, awsCfg, appLogger)
	if err != nil {
		return nil, err
	}

	firer := components.NewTimer(components.Deps{
		Recorder:      bootstrap.NewRecorder(cfg, awsCfg, appLogger),
		Logger:        appLogger,
		Clock:         types.RealClock{},
		DefaultTenant: defaultTenant,
	})

	logger.Info("timer worker initialized", "schedules", len(channels.Timer.Schedules))
	return &Handler{
		Timer:     firer,
		Schedules: channels.Timer.Schedules,
		Publisher: publisher,
		Logger:    logger,
	}, nil
}
