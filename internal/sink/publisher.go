// Package sink delivers envelopes produced by the channel adapters to the
// host's downstream transport.
package sink

import (
	"context"
	"encoding/json"

	"eventgate/internal/types"
)

// Message attribute and header names attached to every delivered envelope.
const (
	AttrTopic  = "topic"
	AttrTenant = "tenant"
	AttrType   = "type"
)

// Publisher delivers envelopes. Publish either delivers every envelope or
// returns the first failure.
type Publisher interface {
	Publish(ctx context.Context, envs ...types.EventEnvelope) error
}

// LogPublisher writes envelopes to the logger. Payloads are not logged.
type LogPublisher struct {
	logger types.Logger
}

// NewLogPublisher returns a LogPublisher.
func NewLogPublisher(logger types.Logger) *LogPublisher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, envs ...types.EventEnvelope) error {
	for _, env := range envs {
		p.logger.Info("envelope published",
			"event_id", env.ID,
			"topic", env.Topic,
			"type", env.Type,
			"source", env.Source,
			"tenant", env.Tenant.String(),
			"correlation_id", env.CorrelationValue(),
		)
	}
	return nil
}

// Recording keeps published envelopes in memory.
type Recording struct {
	Envelopes []types.EventEnvelope
	Err       error
}

// Publish implements Publisher.
func (r *Recording) Publish(_ context.Context, envs ...types.EventEnvelope) error {
	if r.Err != nil {
		return r.Err
	}
	r.Envelopes = append(r.Envelopes, envs...)
	return nil
}

func encode(env types.EventEnvelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeOtherSerialization, "encode envelope", err)
	}
	return body, nil
}

var (
	_ Publisher = (*LogPublisher)(nil)
	_ Publisher = (*Recording)(nil)
)
