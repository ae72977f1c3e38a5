package components

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"eventgate/internal/channels/webhook"
	"eventgate/internal/host"
	"eventgate/internal/secrets"
	"eventgate/internal/sink"
	"eventgate/internal/state"
	"eventgate/internal/telemetry"
	"eventgate/internal/transport"
	"eventgate/internal/types"
)

const webhookAuthContext = "webhook bearer token"

var webhookSchema = host.MustCompileSchema("events.webhook", `{
	"type": "object",
	"required": ["target_url"],
	"properties": {
		"target_url": {"type": "string", "minLength": 1},
		"method": {"type": "string"},
		"headers": {"type": "object", "additionalProperties": {"type": "string"}},
		"auth_ref": {"type": "string"},
		"timeout_ms": {"type": "integer", "minimum": 0},
		"retry_delay_seconds": {"type": "integer", "minimum": 0, "maximum": 900}
	}
}`)

// WebhookConfig configures outbound publishing. AuthRef names the secret
// holding a bearer token; the token itself is never configured.
type WebhookConfig struct {
	TargetURL         string            `json:"target_url" validate:"required,url"`
	Method            string            `json:"method,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
	AuthRef           string            `json:"auth_ref,omitempty"`
	TimeoutMS         int               `json:"timeout_ms,omitempty" validate:"gte=0"`
	RetryDelaySeconds int               `json:"retry_delay_seconds,omitempty" validate:"gte=0,lte=900"`
}

// WebhookPublishInput is the publish operation input.
type WebhookPublishInput struct {
	Config        WebhookConfig    `json:"config"`
	Event         json.RawMessage  `json:"event"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Tenant        *types.TenantCtx `json:"tenant,omitempty"`
}

// WebhookIngestInput is the ingest operation input.
type WebhookIngestInput struct {
	Endpoint webhook.EndpointConfig `json:"endpoint"`
	Request  webhook.InboundRequest `json:"request"`
	Tenant   *types.TenantCtx       `json:"tenant,omitempty"`
}

// RequestView is an outbound request as reported back to callers, with
// credential headers redacted and the body kept as JSON.
type RequestView struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// WebhookPublishResult reports a publish. Status is "published" when the
// transport accepted the request and "queued" otherwise.
type WebhookPublishResult struct {
	ReceiptID     string                `json:"receipt_id"`
	Status        string                `json:"status"`
	Dispatched    bool                  `json:"dispatched"`
	Request       RequestView           `json:"request"`
	SecretEvents  []types.EventEnvelope `json:"secret_events,omitempty"`
	DispatchError string                `json:"dispatch_error,omitempty"`
	RetryQueued   bool                  `json:"retry_queued,omitempty"`
	RetryError    string                `json:"retry_error,omitempty"`
}

// WebhookIngestResult is an inbound request mapped to an envelope.
type WebhookIngestResult struct {
	EventResult
	ReceiptID  string `json:"receipt_id"`
	StateKey   string `json:"state_key"`
	StateError string `json:"state_error,omitempty"`
}

// Webhook is the events.webhook component.
type Webhook struct {
	deps Deps
}

// NewWebhook returns the webhook component.
func NewWebhook(deps Deps) *Webhook {
	return &Webhook{deps: deps.withDefaults()}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Describe() host.Description {
	return host.Description{
		ProviderType: "events.webhook",
		Capabilities: map[string]any{
			"operations":    []host.Operation{host.OpPublish, host.OpIngest},
			"transport":     "http",
			"deterministic": true,
		},
		Ops: []host.Operation{host.OpPublish, host.OpIngest},
	}
}

func (w *Webhook) ValidateConfig(raw []byte) host.ValidationResult {
	return host.Validate(raw, webhookSchema, &WebhookConfig{})
}

func (w *Webhook) Healthcheck(context.Context) host.Health { return host.HealthOK }

func (w *Webhook) Invoke(ctx context.Context, op host.Operation, input []byte) (any, error) {
	switch op {
	case host.OpPublish:
		var in WebhookPublishInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return w.Publish(ctx, in)
	case host.OpIngest:
		var in WebhookIngestInput
		if err := host.DecodeInput(input, &in); err != nil {
			return nil, err
		}
		return w.Ingest(ctx, in)
	default:
		return nil, unsupported(w, op)
	}
}

// Publish builds the outbound request, derives its receipt and attempts one
// dispatch. A transport failure is not an error: the result is "queued" and
// the request is parked on the retry queue when one is configured.
func (w *Webhook) Publish(ctx context.Context, in WebhookPublishInput) (*WebhookPublishResult, error) {
	event := in.Event
	if len(event) == 0 {
		event = json.RawMessage("null")
	}
	receiptID, err := receiptFor(event)
	if err != nil {
		return nil, err
	}

	req, secretEvents, err := w.buildRequest(ctx, in, event)
	if err != nil {
		return nil, err
	}

	sendCtx := ctx
	if in.Config.TimeoutMS > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, time.Duration(in.Config.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	started := w.deps.Clock.Now()
	_, sendErr := w.deps.Transport.Send(sendCtx, req)
	latency := w.deps.Clock.Now().Sub(started)

	res := &WebhookPublishResult{
		ReceiptID:    receiptID,
		Status:       StatusPublished,
		Dispatched:   sendErr == nil,
		Request:      viewOf(req),
		SecretEvents: secretEvents,
	}
	if sendErr == nil {
		w.deps.Recorder.RecordDispatch(ctx, w.Name(), telemetry.DispatchPublished, latency)
		return res, nil
	}

	w.deps.Recorder.RecordDispatch(ctx, w.Name(), telemetry.DispatchQueued, latency)
	res.Status = StatusQueued
	res.DispatchError = sendErr.Error()
	w.deps.Logger.Warn("webhook dispatch failed",
		"receipt_id", receiptID,
		"url", req.URL,
		"error_kind", string(types.KindOf(sendErr)),
		"error", sendErr.Error(),
	)

	if w.deps.Requeuer != nil {
		rec := sink.RetryRecord{
			ReceiptID: receiptID,
			Component: w.Name(),
			Request:   req,
			AuthRef:   in.Config.AuthRef,
			Reason:    sendErr.Error(),
			QueuedAt:  w.deps.Clock.Now(),
		}
		delay := time.Duration(in.Config.RetryDelaySeconds) * time.Second
		if err := w.deps.Requeuer.Requeue(ctx, rec, delay); err != nil {
			res.RetryError = err.Error()
		} else {
			res.RetryQueued = true
		}
	}
	return res, nil
}

func (w *Webhook) buildRequest(ctx context.Context, in WebhookPublishInput, event json.RawMessage) (transport.Request, []types.EventEnvelope, error) {
	body, err := json.Marshal(map[string]json.RawMessage{"event": event})
	if err != nil {
		return transport.Request{}, nil, types.NewAppError(types.ErrCodeOtherSerialization, "encode webhook body", err)
	}

	var tenant types.TenantCtx
	var secretEvents []types.EventEnvelope
	var token []byte
	if in.Config.AuthRef != "" {
		tenant, err = w.deps.tenantOr(in.Tenant)
		if err != nil {
			return transport.Request{}, nil, err
		}
		res, err := secrets.Resolve(ctx, w.deps.Secrets, secrets.Lookup{
			Key:     in.Config.AuthRef,
			Scope:   secrets.ScopeTenant,
			Tenant:  tenant,
			Source:  webhook.SourceName,
			Context: webhookAuthContext,
		})
		if err != nil {
			return transport.Request{}, nil, err
		}
		secretEvents = res.Events
		token = res.Value
	}

	carrier := types.NewEvent("webhook.outbound", webhook.EventType, webhook.SourceName, tenant, "", in.CorrelationID, body, nil)
	req := webhook.BuildOutgoingRequest(webhook.OutboundConfig{URL: in.Config.TargetURL, Headers: in.Config.Headers}, carrier)
	if in.Config.Method != "" {
		req.Method = strings.ToUpper(in.Config.Method)
	}
	if token != nil && !hasHeader(req.Headers, "authorization") {
		req.Headers["authorization"] = "Bearer " + string(token)
	}
	return req, secretEvents, nil
}

// Ingest maps an inbound request through the endpoint's routes and records
// the envelope under its receipt.
func (w *Webhook) Ingest(ctx context.Context, in WebhookIngestInput) (*WebhookIngestResult, error) {
	tenant, err := w.deps.tenantOr(in.Tenant)
	if err != nil {
		return nil, err
	}
	out, err := webhook.NewSource(in.Endpoint).HandleRequest(ctx, tenant, in.Request, w.deps.Secrets)
	if err != nil {
		return nil, err
	}
	w.deps.Recorder.RecordEnvelope(ctx, webhook.SourceName)

	receiptID, err := receiptFor(out.Event.Payload)
	if err != nil {
		return nil, err
	}
	key := state.Key(state.PrefixWebhookReceived, receiptID)
	stateErr := w.deps.persist(ctx, w.Name(), key, out.Event, map[string]string{"topic": out.Event.Topic})

	return &WebhookIngestResult{
		EventResult: EventResult{Event: out.Event, SecretEvents: out.SecretEvents},
		ReceiptID:   receiptID,
		StateKey:    key,
		StateError:  stateErr,
	}, nil
}

func viewOf(req transport.Request) RequestView {
	body := json.RawMessage(req.Body)
	if !json.Valid(body) {
		body, _ = json.Marshal(string(req.Body))
	}
	return RequestView{
		Method:  req.Method,
		URL:     req.URL,
		Headers: types.RedactHeaders(req.Headers),
		Body:    body,
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
