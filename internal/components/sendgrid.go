package components

import (
	"context"
	"encoding/json"

	"eventgate/internal/channels/email"
	"eventgate/internal/host"
	"eventgate/internal/state"
	"eventgate/internal/types"
)

const (
	sendgridEventType = "com.greentic.email.sendgrid.inbound.v1"
	sendgridProvider  = "sendgrid"
	defaultHandlerID  = "default"
)

var sendgridSchema = host.MustCompileSchema("events.email.sendgrid", emailConfigSchemaSrc)

// SendgridIngestInput is what the SendGrid inbound-parse hook hands over.
type SendgridIngestInput struct {
	Config        EmailConfig      `json:"config"`
	Event         json.RawMessage  `json:"event"`
	HandlerID     string           `json:"handler_id,omitempty"`
	Tenant        *types.TenantCtx `json:"tenant,omitempty"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	HTTP          json.RawMessage  `json:"http,omitempty"`
	Raw           json.RawMessage  `json:"raw,omitempty"`
}

// Sendgrid is the events.email.sendgrid component.
type Sendgrid struct {
	deps Deps
}

// NewSendgrid returns the SendGrid inbound component.
func NewSendgrid(deps Deps) *Sendgrid {
	return &Sendgrid{deps: deps.withDefaults()}
}

func (s *Sendgrid) Name() string { return "email-sendgrid" }

func (s *Sendgrid) Describe() host.Description {
	ops := []host.Operation{host.OpIngestHTTP, host.OpPublish}
	return host.Description{
		ProviderType: "events.email.sendgrid",
		Capabilities: map[string]any{
			"operations":    ops,
			"persistence":   "state-store",
			"deterministic": true,
		},
		Ops: ops,
	}
}

func (s *Sendgrid) ValidateConfig(raw []byte) host.ValidationResult {
	return host.Validate(raw, sendgridSchema, &EmailConfig{})
}

func (s *Sendgrid) Healthcheck(context.Context) host.Health { return host.HealthOK }

func (s *Sendgrid) Invoke(ctx context.Context, op host.Operation, input []byte) (any, error) {
	switch op {
	case host.OpIngestHTTP, host.OpPublish:
		var in SendgridIngestInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return s.IngestHTTP(ctx, in)
	default:
		return nil, unsupported(s, op)
	}
}

// IngestHTTP records the inbound message as queued and emits its envelope on
// email.in.sendgrid.<handler>.
func (s *Sendgrid) IngestHTTP(ctx context.Context, in SendgridIngestInput) (*QueuedResult, error) {
	if err := requireProviderID(in.Config); err != nil {
		return nil, err
	}
	tenant, err := s.deps.tenantOr(in.Tenant)
	if err != nil {
		return nil, err
	}
	receiptID, err := receiptFor(in.Event)
	if err != nil {
		return nil, err
	}
	key := state.Key(prefixOr(in.Config.PersistenceKeyPrefix, state.PrefixSendgridQueued), receiptID)
	entry := QueuedEmail{
		MessagingProviderID: in.Config.MessagingProviderID,
		From:                in.Config.From,
		Event:               rawOrNull(in.Event),
		QueuedAt:            timestamp(s.deps.Clock.Now()),
	}
	stateErr := s.deps.persist(ctx, s.Name(), key, entry, nil)

	handler := in.HandlerID
	if handler == "" {
		handler = defaultHandlerID
	}
	payload := map[string]json.RawMessage{"event": rawOrNull(in.Event)}
	if len(in.HTTP) > 0 {
		payload["http"] = in.HTTP
	}
	if len(in.Raw) > 0 {
		payload["raw"] = in.Raw
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeOtherSerialization, "encode sendgrid payload", err)
	}

	md := types.Metadata{}
	md.Set(types.MetaProvider, sendgridProvider)
	md.Set("handler_id", handler)
	md.Set("receipt_id", receiptID)
	env := types.NewEvent("email.in.sendgrid."+handler, sendgridEventType, email.SourceName, tenant,
		handler, in.CorrelationID, body, md)
	s.deps.Recorder.RecordEnvelope(ctx, email.SourceName)

	return &QueuedResult{
		ReceiptID:     receiptID,
		Status:        StatusQueued,
		StateKey:      key,
		StateError:    stateErr,
		EmittedEvents: []types.EventEnvelope{env},
	}, nil
}
