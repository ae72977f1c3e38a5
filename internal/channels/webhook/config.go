// Package webhook maps inbound HTTP webhook requests onto event envelopes and
// builds the outbound requests a webhook sink sends.
package webhook

// Envelope identity for webhook events.
const (
	SourceName = "webhook-gateway"
	EventType  = "com.greentic.webhook.generic.v1"

	signingSecretContext = "webhook signing secret"
	defaultEventType     = "received"
)

// Route maps one path under the endpoint base to a topic prefix.
type Route struct {
	Path        string `json:"path" yaml:"path" validate:"required,startswith=/"`
	SecretRef   string `json:"secret_ref,omitempty" yaml:"secret_ref,omitempty"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix" validate:"required"`
}

// EndpointConfig is the set of routes served under one base path. Route paths
// must be distinct; matching is exact.
type EndpointConfig struct {
	BasePath string  `json:"base_path" yaml:"base_path" validate:"required,startswith=/"`
	Routes   []Route `json:"routes" yaml:"routes" validate:"required,min=1,unique=Path,dive"`
}

// OutboundConfig describes a webhook sink.
type OutboundConfig struct {
	URL     string            `json:"url" yaml:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}
