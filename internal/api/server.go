// Package api is the HTTP chassis of the eventgate gateway. It serves the
// channel ingress routes (webhooks, Twilio, timer fires) and the component
// dispatch surface from one chi router behind a shared middleware chain.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/components"
	"eventgate/internal/config"
	"eventgate/internal/host"
	"eventgate/internal/secrets"
	"eventgate/internal/sink"
	"eventgate/internal/types"
)

// MetricsCollector records gateway request telemetry.
type MetricsCollector interface {
	RecordRequest(method, route, status string, duration time.Duration)
}

// Server holds every dependency of the gateway so tests can inject doubles.
type Server struct {
	Config       *config.Config
	Channels     *config.Channels
	Logger       *slog.Logger
	Metrics      MetricsCollector
	Publisher    sink.Publisher
	Registry     *host.Registry
	HealthProbes []HealthProbe

	secrets       secrets.Provider
	clock         types.Clock
	defaultTenant types.TenantCtx

	webhook *components.Webhook
	sms     *components.SMS
	timer   *components.Timer

	router *chi.Mux
}

// NewServer builds the component registry over deps and prepares the router.
// Routes are mounted separately through MountRoutes.
func NewServer(
	cfg *config.Config,
	channels *config.Channels,
	deps components.Deps,
	publisher sink.Publisher,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if channels == nil {
		channels = &config.Channels{}
	}

	if deps.Logger == nil {
		deps.Logger = types.NewSlogLogger(logger)
	}
	if deps.Secrets == nil {
		deps.Secrets = secrets.EmptyProvider()
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}

	s := &Server{
		Config:        cfg,
		Channels:      channels,
		Logger:        logger,
		Publisher:     publisher,
		secrets:       deps.Secrets,
		clock:         deps.Clock,
		defaultTenant: deps.DefaultTenant,
		webhook:       components.NewWebhook(deps),
		sms:           components.NewSMS(deps),
		timer:         components.NewTimer(deps),
		router:        chi.NewRouter(),
	}
	s.Registry = host.NewRegistry(
		s.webhook,
		components.NewEmail(deps),
		components.NewSendgrid(deps),
		s.sms,
		s.timer,
		components.NewDummy(deps),
	)
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases the publisher when it holds connections (the Kafka
// writer does).
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if closer, ok := s.Publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.Logger.Error("error closing publisher", "error", err)
			return fmt.Errorf("closing publisher: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
