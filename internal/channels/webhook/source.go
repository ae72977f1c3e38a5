package webhook

import (
	"context"
	"encoding/json"
	"strings"

	"eventgate/internal/channels"
	"eventgate/internal/secrets"
	"eventgate/internal/types"
)

// InboundRequest is the host's view of a received webhook call.
type InboundRequest struct {
	Method             string            `json:"method"`
	Path               string            `json:"path"`
	Headers            map[string]string `json:"headers,omitempty"`
	Body               json.RawMessage   `json:"body"`
	CorrelationID      string            `json:"correlation_id,omitempty"`
	SignatureValidated bool              `json:"signature_validated,omitempty"`
}

// Result is the envelope built from a request plus the audit events produced
// while resolving the route's signing secret.
type Result struct {
	Event        types.EventEnvelope   `json:"event"`
	SecretEvents []types.EventEnvelope `json:"secret_events"`
}

// Source turns inbound requests into envelopes for one endpoint.
type Source struct {
	config EndpointConfig
}

// NewSource returns an adapter for cfg.
func NewSource(cfg EndpointConfig) *Source {
	return &Source{config: cfg}
}

// Config returns the endpoint configuration.
func (s *Source) Config() EndpointConfig {
	return s.config
}

// HandleRequest routes req and builds its envelope. An unmatched path is a
// Config error; a secret store failure is an Auth error. The adapter never
// verifies signatures itself: signature_valid only reports what the caller
// asserted, or true when the route has no secret.
func (s *Source) HandleRequest(ctx context.Context, tenant types.TenantCtx, req InboundRequest, p secrets.Provider) (*Result, error) {
	route, ok := s.MatchRoute(req.Path)
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConfigUnknownRoute,
			"no route for path "+req.Path, nil, map[string]any{"path": req.Path})
	}

	md := types.Metadata{}
	md.Set(types.MetaHTTPMethod, req.Method)
	md.Set(types.MetaPath, req.Path)
	if req.CorrelationID != "" {
		md.Set(types.MetaCorrelationID, req.CorrelationID)
	}
	channels.AddHeaders(md, req.Headers)
	md.Set(types.MetaSignatureValid, channels.FormatBool(req.SignatureValidated || route.SecretRef == ""))
	md.Set(types.MetaTopicPrefix, route.TopicPrefix)
	if key, ok := channels.LookupHeader(req.Headers, "idempotency-key"); ok {
		types.SetIdempotencyKey(md, key)
	}

	secretEvents, err := ResolveRouteSecret(ctx, route, p, tenant)
	if err != nil {
		return nil, err
	}

	body := req.Body
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	topic := route.TopicPrefix + "." + DetectEventType(body)
	env := types.NewEvent(topic, EventType, SourceName, tenant, req.Path, req.CorrelationID, body, md)
	return &Result{Event: env, SecretEvents: secretEvents}, nil
}

// MatchRoute strips the base path from path and finds the route whose path is
// exactly the remainder. An empty remainder is "/".
func (s *Source) MatchRoute(path string) (Route, bool) {
	normalized := StripBase(s.config.BasePath, path)
	for _, r := range s.config.Routes {
		if r.Path == normalized {
			return r, true
		}
	}
	return Route{}, false
}

// ResolveRouteSecret resolves the route's signing secret when one is
// configured and returns its audit events.
func ResolveRouteSecret(ctx context.Context, route Route, p secrets.Provider, tenant types.TenantCtx) ([]types.EventEnvelope, error) {
	res, err := LookupRouteSecret(ctx, route, p, tenant)
	if err != nil || res == nil {
		return []types.EventEnvelope{}, err
	}
	return res.Events, nil
}

// LookupRouteSecret is ResolveRouteSecret for callers that also need the
// value, such as signature verification. It returns nil when the route has
// no secret.
func LookupRouteSecret(ctx context.Context, route Route, p secrets.Provider, tenant types.TenantCtx) (*secrets.Resolution, error) {
	if route.SecretRef == "" {
		return nil, nil
	}
	return secrets.Resolve(ctx, p, secrets.Lookup{
		Key:     route.SecretRef,
		Scope:   secrets.ScopeTenant,
		Tenant:  tenant,
		Source:  SourceName,
		Context: signingSecretContext,
	})
}

// StripBase removes every leading repetition of base (without its trailing
// slash) from path.
func StripBase(base, path string) string {
	trimmed := strings.TrimRight(base, "/")
	if trimmed != "" {
		for strings.HasPrefix(path, trimmed) {
			path = path[len(trimmed):]
		}
	}
	if path == "" {
		return "/"
	}
	return path
}

// DetectEventType returns the string "type" field of a JSON object body, or
// "received".
func DetectEventType(body json.RawMessage) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return defaultEventType
	}
	var t string
	if raw, ok := obj["type"]; ok && json.Unmarshal(raw, &t) == nil {
		return t
	}
	return defaultEventType
}
