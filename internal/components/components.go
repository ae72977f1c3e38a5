// Package components implements the providers exposed through the host
// dispatch surface. Each component decodes its operation input, runs the
// matching channel adapter and reports persistence failures as a sideband.
package components

import (
	"context"
	"encoding/json"
	"time"

	"eventgate/internal/host"
	"eventgate/internal/receipt"
	"eventgate/internal/secrets"
	"eventgate/internal/sink"
	"eventgate/internal/state"
	"eventgate/internal/telemetry"
	"eventgate/internal/transport"
	"eventgate/internal/types"
)

// Status values reported by publish-style operations.
const (
	StatusPublished = "published"
	StatusQueued    = "queued"
)

// Deps are the capabilities the host supplies. Only Secrets, Store and
// Transport are consulted by adapters; the rest are optional.
type Deps struct {
	Secrets       secrets.Provider
	Store         state.Store
	Transport     transport.Transport
	Requeuer      sink.Requeuer
	Recorder      telemetry.Recorder
	Logger        types.Logger
	Clock         types.Clock
	DefaultTenant types.TenantCtx
}

func (d Deps) withDefaults() Deps {
	if d.Secrets == nil {
		d.Secrets = secrets.EmptyProvider()
	}
	if d.Transport == nil {
		d.Transport = transport.Unavailable{}
	}
	if d.Recorder == nil {
		d.Recorder = telemetry.NoopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = types.NopLogger{}
	}
	if d.Clock == nil {
		d.Clock = types.RealClock{}
	}
	return d
}

// All builds every component over deps.
func All(deps Deps) []host.Component {
	return []host.Component{
		NewWebhook(deps),
		NewEmail(deps),
		NewSendgrid(deps),
		NewSMS(deps),
		NewTimer(deps),
		NewDummy(deps),
	}
}

// tenantOr returns t, or the default tenant when t is unset. A missing
// tenant with no default is a Config error.
func (d Deps) tenantOr(t *types.TenantCtx) (types.TenantCtx, error) {
	if t != nil && !t.IsZero() {
		return *t, nil
	}
	if !d.DefaultTenant.IsZero() {
		return d.DefaultTenant, nil
	}
	return types.TenantCtx{}, types.ConfigErrorf(types.ErrCodeConfigInvalidTenant, "tenant is required")
}

// withTenant fills in the default tenant of an envelope decoded without one.
func (d Deps) withTenant(env types.EventEnvelope) (types.EventEnvelope, error) {
	if !env.Tenant.IsZero() {
		return env, nil
	}
	t, err := d.tenantOr(nil)
	if err != nil {
		return env, err
	}
	env.Tenant = t
	return env, nil
}

// QueuedResult is returned by operations that persist a unit of work.
type QueuedResult struct {
	ReceiptID     string                `json:"receipt_id"`
	Status        string                `json:"status"`
	StateKey      string                `json:"state_key,omitempty"`
	StateError    string                `json:"state_error,omitempty"`
	EmittedEvents []types.EventEnvelope `json:"emitted_events,omitempty"`
}

// EventResult carries one envelope plus the audit trail that produced it.
type EventResult struct {
	Event        types.EventEnvelope   `json:"event"`
	SecretEvents []types.EventEnvelope `json:"secret_events,omitempty"`
}

// receiptFor derives the receipt id of an operation input value.
func receiptFor(v json.RawMessage) (string, error) {
	if len(v) == 0 {
		v = json.RawMessage("null")
	}
	id, err := receipt.FromJSON(v)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeOtherSerialization, "derive receipt id", err)
	}
	return id, nil
}

// persist writes value under key and returns the sideband message, logging
// failures.
func (d Deps) persist(ctx context.Context, component, key string, value any, md map[string]string) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return "encode state entry: " + err.Error()
	}
	msg := state.Persist(ctx, d.Store, key, raw, md)
	if msg != "" {
		d.Logger.Warn("state write failed",
			"component", component,
			"state_key", key,
			"error", msg,
		)
	}
	return msg
}

// timestamp renders t the way queued entries record it.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// prefixOr returns prefix, or def when prefix is empty.
func prefixOr(prefix, def string) string {
	if prefix == "" {
		return def
	}
	return prefix
}

func unsupported(c host.Component, op host.Operation) error {
	_, err := host.ParseOperation(c, string(op))
	if err == nil {
		err = types.ConfigErrorf(types.ErrCodeConfigUnsupportedOp, "unsupported op %s", op)
	}
	return err
}
