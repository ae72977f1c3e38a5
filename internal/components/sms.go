package components

import (
	"context"

	"eventgate/internal/channels/sms"
	"eventgate/internal/host"
	"eventgate/internal/types"
)

var smsSchema = host.MustCompileSchema("events.sms.twilio", `{
	"type": "object",
	"properties": {
		"source": {
			"type": "object",
			"properties": {
				"phone_aliases": {"type": "object", "additionalProperties": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"}},
				"signing_secret_ref": {"type": ["string", "null"]}
			}
		},
		"sink": {
			"type": "object",
			"required": ["account_sid"],
			"properties": {
				"account_sid": {"type": "string", "pattern": "^AC"},
				"auth_token_ref": {"type": ["string", "null"]},
				"default_from": {"type": ["string", "null"]}
			}
		}
	}
}`)

// SMSConfig holds both directions of the Twilio channel.
type SMSConfig struct {
	Source sms.SourceConfig `json:"source"`
	Sink   *sms.SinkConfig  `json:"sink,omitempty"`
}

// SMSIngestInput is the sms ingest input.
type SMSIngestInput struct {
	Config  SMSConfig          `json:"config"`
	Tenant  *types.TenantCtx   `json:"tenant,omitempty"`
	Payload sms.WebhookPayload `json:"payload"`
}

// SMSSendInput is the sms send input.
type SMSSendInput struct {
	Config SMSConfig           `json:"config"`
	Event  types.EventEnvelope `json:"event"`
}

// SMS is the events.sms.twilio component.
type SMS struct {
	deps Deps
}

// NewSMS returns the Twilio SMS component.
func NewSMS(deps Deps) *SMS {
	return &SMS{deps: deps.withDefaults()}
}

func (s *SMS) Name() string { return "sms" }

func (s *SMS) Describe() host.Description {
	ops := []host.Operation{host.OpIngest, host.OpSend}
	return host.Description{
		ProviderType: "events.sms.twilio",
		Capabilities: map[string]any{
			"operations":    ops,
			"deterministic": true,
		},
		Ops: ops,
	}
}

func (s *SMS) ValidateConfig(raw []byte) host.ValidationResult {
	return host.Validate(raw, smsSchema, &SMSConfig{})
}

func (s *SMS) Healthcheck(context.Context) host.Health { return host.HealthOK }

func (s *SMS) Invoke(ctx context.Context, op host.Operation, input []byte) (any, error) {
	switch op {
	case host.OpIngest:
		var in SMSIngestInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return s.Ingest(ctx, in)
	case host.OpSend:
		var in SMSSendInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return s.Send(ctx, in)
	default:
		return nil, unsupported(s, op)
	}
}

// Ingest maps an inbound Twilio message.
func (s *SMS) Ingest(ctx context.Context, in SMSIngestInput) (*EventResult, error) {
	tenant, err := s.deps.tenantOr(in.Tenant)
	if err != nil {
		return nil, err
	}
	env := sms.HandleInbound(in.Config.Source, tenant, in.Payload)
	s.deps.Recorder.RecordEnvelope(ctx, sms.SourceName)
	return &EventResult{Event: env}, nil
}

// Send builds the Twilio request for an outbound envelope.
func (s *SMS) Send(ctx context.Context, in SMSSendInput) (*sms.SendRequest, error) {
	if in.Config.Sink == nil {
		return nil, types.MissingFieldError("object", "config.sink")
	}
	env, err := s.deps.withTenant(in.Event)
	if err != nil {
		return nil, err
	}
	return sms.BuildSendRequest(ctx, *in.Config.Sink, env, s.deps.Secrets)
}
