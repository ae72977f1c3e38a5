// Package telemetry records gateway metrics.
package telemetry

import (
	"context"
	"time"

	"eventgate/internal/secrets"
)

// Metric and dimension names.
const (
	DefaultNamespace = "EventGate"

	MetricSecretResolution = "SecretResolution"
	MetricEnvelopeEmitted  = "EnvelopeEmitted"
	MetricDispatchAttempt  = "DispatchAttempt"
	MetricDispatchLatency  = "DispatchAttemptLatency"
	MetricGatewayRequest   = "GatewayRequest"
	MetricGatewayLatency   = "GatewayLatency"

	DimSource    = "Source"
	DimOutcome   = "Outcome"
	DimComponent = "Component"
	DimResult    = "Result"
	DimRoute     = "Route"
	DimStatus    = "Status"
)

// DispatchResult is the outcome of an outbound delivery attempt.
type DispatchResult string

const (
	DispatchPublished DispatchResult = "published"
	DispatchQueued    DispatchResult = "queued"
)

// Recorder receives gateway observations. Implementations must not fail the
// caller: errors are logged and dropped.
type Recorder interface {
	secrets.ResolutionRecorder
	RecordEnvelope(ctx context.Context, source string)
	RecordDispatch(ctx context.Context, component string, result DispatchResult, latency time.Duration)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordSecretResolution(context.Context, string, string) {}

func (NoopRecorder) RecordEnvelope(context.Context, string) {}

func (NoopRecorder) RecordDispatch(context.Context, string, DispatchResult, time.Duration) {}

func (NoopRecorder) RecordRequest(string, string, string, time.Duration) {}

var _ Recorder = NoopRecorder{}
