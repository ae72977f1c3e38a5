package components

import (
	"context"
	"encoding/json"
	"strings"

	"eventgate/internal/channels/email"
	"eventgate/internal/host"
	"eventgate/internal/state"
	"eventgate/internal/types"
)

const emailConfigSchemaSrc = `{
	"type": "object",
	"required": ["messaging_provider_id"],
	"properties": {
		"messaging_provider_id": {"type": "string", "minLength": 1, "pattern": "\\S"},
		"from": {"type": ["string", "null"]},
		"persistence_key_prefix": {"type": ["string", "null"]}
	}
}`

var emailSchema = host.MustCompileSchema("events.email", emailConfigSchemaSrc)

// EmailConfig configures the queued email components.
type EmailConfig struct {
	MessagingProviderID  string `json:"messaging_provider_id" validate:"required"`
	From                 string `json:"from,omitempty" validate:"omitempty,email"`
	PersistenceKeyPrefix string `json:"persistence_key_prefix,omitempty"`
}

// EmailPublishInput is the email publish input.
type EmailPublishInput struct {
	Config EmailConfig     `json:"config"`
	Event  json.RawMessage `json:"event"`
}

// EmailIngestInput is the email ingest input.
type EmailIngestInput struct {
	Tenant *types.TenantCtx   `json:"tenant,omitempty"`
	Email  email.InboundEmail `json:"email"`
}

// EmailSendInput is the email send input. The envelope carries its own tenant.
type EmailSendInput struct {
	Event types.EventEnvelope `json:"event"`
}

// QueuedEmail is the state entry written by publish.
type QueuedEmail struct {
	MessagingProviderID string          `json:"messaging_provider_id"`
	From                string          `json:"from,omitempty"`
	Event               json.RawMessage `json:"event"`
	QueuedAt            string          `json:"queued_at"`
}

// Email is the events.email component.
type Email struct {
	deps Deps
}

// NewEmail returns the email component.
func NewEmail(deps Deps) *Email {
	return &Email{deps: deps.withDefaults()}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Describe() host.Description {
	ops := []host.Operation{host.OpPublish, host.OpIngest, host.OpSend}
	return host.Description{
		ProviderType: "events.email",
		Capabilities: map[string]any{
			"operations":    ops,
			"persistence":   "state-store",
			"providers":     []email.Provider{email.ProviderMsGraph, email.ProviderGmail},
			"deterministic": true,
		},
		Ops: ops,
	}
}

func (e *Email) ValidateConfig(raw []byte) host.ValidationResult {
	return host.Validate(raw, emailSchema, &EmailConfig{})
}

func (e *Email) Healthcheck(context.Context) host.Health { return host.HealthOK }

func (e *Email) Invoke(ctx context.Context, op host.Operation, input []byte) (any, error) {
	switch op {
	case host.OpPublish:
		var in EmailPublishInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return e.Publish(ctx, in)
	case host.OpIngest:
		var in EmailIngestInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return e.Ingest(ctx, in)
	case host.OpSend:
		var in EmailSendInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return e.Send(ctx, in)
	default:
		return nil, unsupported(e, op)
	}
}

// Publish records the event as a queued email under its receipt.
func (e *Email) Publish(ctx context.Context, in EmailPublishInput) (*QueuedResult, error) {
	if err := requireProviderID(in.Config); err != nil {
		return nil, err
	}
	receiptID, err := receiptFor(in.Event)
	if err != nil {
		return nil, err
	}
	key := state.Key(prefixOr(in.Config.PersistenceKeyPrefix, state.PrefixEmailQueued), receiptID)
	entry := QueuedEmail{
		MessagingProviderID: in.Config.MessagingProviderID,
		From:                in.Config.From,
		Event:               rawOrNull(in.Event),
		QueuedAt:            timestamp(e.deps.Clock.Now()),
	}
	return &QueuedResult{
		ReceiptID:  receiptID,
		Status:     StatusQueued,
		StateKey:   key,
		StateError: e.deps.persist(ctx, e.Name(), key, entry, nil),
	}, nil
}

// Ingest maps a provider-delivered message to its envelope.
func (e *Email) Ingest(ctx context.Context, in EmailIngestInput) (*EventResult, error) {
	tenant, err := e.deps.tenantOr(in.Tenant)
	if err != nil {
		return nil, err
	}
	env := email.MapInbound(tenant, in.Email)
	e.deps.Recorder.RecordEnvelope(ctx, email.SourceName)
	e.deps.Logger.Info("inbound email mapped",
		"event_id", env.ID,
		"topic", env.Topic,
		"from", email.RedactAddress(in.Email.From),
	)
	return &EventResult{Event: env}, nil
}

// Send builds the provider request for an outbound envelope.
func (e *Email) Send(ctx context.Context, in EmailSendInput) (*email.SendRequest, error) {
	env, err := e.deps.withTenant(in.Event)
	if err != nil {
		return nil, err
	}
	return email.BuildSendRequest(ctx, env, e.deps.Secrets)
}

func requireProviderID(cfg EmailConfig) error {
	if strings.TrimSpace(cfg.MessagingProviderID) == "" {
		return types.MissingFieldError("string", "messaging_provider_id")
	}
	return nil
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
