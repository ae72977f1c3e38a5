package webhook

import (
	"net/http"

	"eventgate/internal/transport"
	"eventgate/internal/types"
)

// BuildOutgoingRequest builds the POST that delivers env's payload to cfg.URL.
// Configured headers are kept; content-type and x-correlation-id are set by
// the adapter.
func BuildOutgoingRequest(cfg OutboundConfig, env types.EventEnvelope) transport.Request {
	headers := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["content-type"] = "application/json"
	if env.CorrelationID != nil {
		headers["x-correlation-id"] = *env.CorrelationID
	}
	return transport.Request{
		Method:  http.MethodPost,
		URL:     cfg.URL,
		Headers: headers,
		Body:    append([]byte(nil), env.Payload...),
	}
}
