package components

import (
	"context"
	"encoding/json"
	"time"

	"eventgate/internal/channels/timer"
	"eventgate/internal/host"
	"eventgate/internal/state"
	"eventgate/internal/types"
)

const (
	timerTickTopic  = "timer.tick"
	defaultTimezone = "UTC"
)

var timerSchema = host.MustCompileSchema("events.timer", `{
	"type": "object",
	"properties": {
		"timezone": {"type": "string"},
		"default_delay_seconds": {"type": ["integer", "null"], "minimum": 0},
		"persistence_key_prefix": {"type": ["string", "null"]},
		"schedules": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "cron", "topic"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"cron": {"type": "string", "minLength": 1},
					"topic": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`)

// TimerConfig configures tick persistence and the named schedules.
type TimerConfig struct {
	Timezone             string           `json:"timezone,omitempty"`
	DefaultDelaySeconds  *int64           `json:"default_delay_seconds,omitempty" validate:"omitempty,gte=0"`
	PersistenceKeyPrefix string           `json:"persistence_key_prefix,omitempty"`
	Schedules            []timer.Schedule `json:"schedules,omitempty" validate:"unique=Name,dive"`
}

func (c TimerConfig) timezone() string {
	if c.Timezone == "" {
		return defaultTimezone
	}
	return c.Timezone
}

// TimerTickInput is the timer_tick and publish input.
type TimerTickInput struct {
	Config        TimerConfig      `json:"config"`
	Event         json.RawMessage  `json:"event"`
	HandlerID     string           `json:"handler_id,omitempty"`
	Tenant        *types.TenantCtx `json:"tenant,omitempty"`
	CorrelationID string           `json:"correlation_id,omitempty"`
}

// TimerFireInput is the fire input.
type TimerFireInput struct {
	Config   TimerConfig      `json:"config"`
	Schedule string           `json:"schedule" validate:"required"`
	Tenant   *types.TenantCtx `json:"tenant,omitempty"`
}

// ScheduledEntry is the state entry written by timer_tick.
type ScheduledEntry struct {
	Event               json.RawMessage `json:"event"`
	QueuedAt            string          `json:"queued_at"`
	Timezone            string          `json:"timezone"`
	DefaultDelaySeconds *int64          `json:"default_delay_seconds"`
}

// Timer is the events.timer component.
type Timer struct {
	deps Deps
}

// NewTimer returns the timer component.
func NewTimer(deps Deps) *Timer {
	return &Timer{deps: deps.withDefaults()}
}

func (t *Timer) Name() string { return "timer" }

func (t *Timer) Describe() host.Description {
	ops := []host.Operation{host.OpTimerTick, host.OpPublish, host.OpFire}
	return host.Description{
		ProviderType: "events.timer",
		Capabilities: map[string]any{
			"operations":    ops,
			"persistence":   "state-store",
			"deterministic": true,
		},
		Ops: ops,
	}
}

func (t *Timer) ValidateConfig(raw []byte) host.ValidationResult {
	var cfg TimerConfig
	res := host.Validate(raw, timerSchema, &cfg)
	if !res.Valid {
		return res
	}
	if _, err := time.LoadLocation(cfg.timezone()); err != nil {
		return host.ValidationResult{Valid: false, Error: "unknown timezone " + cfg.Timezone}
	}
	return res
}

func (t *Timer) Healthcheck(context.Context) host.Health { return host.HealthOK }

func (t *Timer) Invoke(ctx context.Context, op host.Operation, input []byte) (any, error) {
	switch op {
	case host.OpTimerTick, host.OpPublish:
		var in TimerTickInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return t.Tick(ctx, in)
	case host.OpFire:
		var in TimerFireInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return t.Fire(ctx, in)
	default:
		return nil, unsupported(t, op)
	}
}

// Tick records the event as scheduled under its receipt and emits a
// timer.tick envelope carrying it.
func (t *Timer) Tick(ctx context.Context, in TimerTickInput) (*QueuedResult, error) {
	tenant, err := t.deps.tenantOr(in.Tenant)
	if err != nil {
		return nil, err
	}
	receiptID, err := receiptFor(in.Event)
	if err != nil {
		return nil, err
	}
	key := state.Key(prefixOr(in.Config.PersistenceKeyPrefix, state.PrefixTimerScheduled), receiptID)
	entry := ScheduledEntry{
		Event:               rawOrNull(in.Event),
		QueuedAt:            timestamp(t.deps.Clock.Now()),
		Timezone:            in.Config.timezone(),
		DefaultDelaySeconds: in.Config.DefaultDelaySeconds,
	}
	stateErr := t.deps.persist(ctx, t.Name(), key, entry, nil)

	handler := in.HandlerID
	if handler == "" {
		handler = defaultHandlerID
	}
	md := types.Metadata{}
	md.Set("handler_id", handler)
	md.Set("receipt_id", receiptID)
	env := types.NewEvent(timerTickTopic, timer.EventType, timer.SourceName, tenant, handler, in.CorrelationID,
		rawOrNull(in.Event), md)
	t.deps.Recorder.RecordEnvelope(ctx, timer.SourceName)

	return &QueuedResult{
		ReceiptID:     receiptID,
		Status:        StatusQueued,
		StateKey:      key,
		StateError:    stateErr,
		EmittedEvents: []types.EventEnvelope{env},
	}, nil
}

// Fire builds the envelope of a configured schedule.
func (t *Timer) Fire(ctx context.Context, in TimerFireInput) (*EventResult, error) {
	tenant, err := t.deps.tenantOr(in.Tenant)
	if err != nil {
		return nil, err
	}
	env, err := timer.NewSource(timer.SchedulerConfig{Schedules: in.Config.Schedules}).Fire(tenant, in.Schedule)
	if err != nil {
		return nil, err
	}
	t.deps.Recorder.RecordEnvelope(ctx, timer.SourceName)
	return &EventResult{Event: env}, nil
}
