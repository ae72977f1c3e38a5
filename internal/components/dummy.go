package components

import (
	"context"
	"encoding/json"

	"eventgate/internal/host"
	"eventgate/internal/state"
	"eventgate/internal/types"
)

// DummyLastPublishedKey holds the most recent dummy publish payload.
const DummyLastPublishedKey = state.PrefixDummyLast + "_published.json"

// PublishResult is the dummy publish outcome.
type PublishResult struct {
	ReceiptID  string `json:"receipt_id"`
	Status     string `json:"status"`
	StateError string `json:"state_error,omitempty"`
}

// Dummy is the events.dummy component, used to exercise the dispatch path.
type Dummy struct {
	deps Deps
}

// NewDummy returns the dummy component.
func NewDummy(deps Deps) *Dummy {
	return &Dummy{deps: deps.withDefaults()}
}

func (d *Dummy) Name() string { return "dummy" }

func (d *Dummy) Describe() host.Description {
	ops := []host.Operation{host.OpPublish, host.OpEcho}
	return host.Description{
		ProviderType: "events.dummy",
		Capabilities: map[string]any{
			"operations":    ops,
			"deterministic": true,
		},
		Ops: ops,
	}
}

// ValidateConfig accepts any JSON document.
func (d *Dummy) ValidateConfig(raw []byte) host.ValidationResult {
	var cfg any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return host.ValidationResult{Valid: false, Error: err.Error()}
	}
	return host.ValidationResult{Valid: true, Config: cfg}
}

func (d *Dummy) Healthcheck(context.Context) host.Health { return host.HealthOK }

func (d *Dummy) Invoke(ctx context.Context, op host.Operation, input []byte) (any, error) {
	if !json.Valid(input) {
		return nil, types.ConfigErrorf(types.ErrCodeConfigInvalid, "invalid input: not a JSON document")
	}
	switch op {
	case host.OpPublish:
		return d.Publish(ctx, input)
	case host.OpEcho:
		return map[string]json.RawMessage{"echo": input}, nil
	default:
		return nil, unsupported(d, op)
	}
}

// Publish stores payload as the last published value. A failed write is
// reported in StateError; the publish itself still succeeds.
func (d *Dummy) Publish(ctx context.Context, payload json.RawMessage) (*PublishResult, error) {
	receiptID, err := receiptFor(payload)
	if err != nil {
		return nil, err
	}
	return &PublishResult{
		ReceiptID:  receiptID,
		Status:     StatusPublished,
		StateError: d.deps.persist(ctx, d.Name(), DummyLastPublishedKey, payload, nil),
	}, nil
}
