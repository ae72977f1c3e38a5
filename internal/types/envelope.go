package types

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Reserved metadata keys written by adapters.
const (
	MetaIdempotencyKey  = "idempotency_key"
	MetaHTTPMethod      = "http_method"
	MetaPath            = "path"
	MetaCorrelationID   = "correlation_id"
	MetaSignatureValid  = "signature_valid"
	MetaTopicPrefix     = "topic_prefix"
	MetaProvider        = "provider"
	MetaScheduleName    = "schedule_name"
	MetaCron            = "cron"
	MetaHeaderKeyPrefix = "header:"
)

// Metadata holds transport-derived string attributes of an envelope. Keys are
// unique; JSON encoding emits them in sorted order.
type Metadata map[string]string

// Set inserts or overwrites key.
func (m Metadata) Set(key, value string) {
	m[key] = value
}

// Get returns the value for key and whether it is present.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HeaderKey returns the metadata key for an inbound header name.
func HeaderKey(name string) string {
	return MetaHeaderKeyPrefix + lowerASCII(name)
}

// SetIdempotencyKey stores key under the reserved idempotency_key entry.
// Repeating the call with the same key leaves md unchanged.
func SetIdempotencyKey(md Metadata, key string) {
	md[MetaIdempotencyKey] = key
}

// EventEnvelope is the canonical unit every channel reads and writes.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Tenant        TenantCtx       `json:"tenant"`
	Subject       *string         `json:"subject,omitempty"`
	Time          time.Time       `json:"time"`
	CorrelationID *string         `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      Metadata        `json:"metadata"`
}

// NewEvent builds an envelope with a fresh random id and the current UTC time.
// Empty subject or correlationID are left unset. A nil payload encodes as JSON null.
func NewEvent(
	topic, eventType, source string,
	tenant TenantCtx,
	subject, correlationID string,
	payload json.RawMessage,
	metadata Metadata,
) EventEnvelope {
	if metadata == nil {
		metadata = Metadata{}
	}
	if payload == nil {
		payload = json.RawMessage("null")
	}
	return EventEnvelope{
		ID:            uuid.NewString(),
		Topic:         topic,
		Type:          eventType,
		Source:        source,
		Tenant:        tenant,
		Subject:       optional(subject),
		Time:          RealClock{}.Now(),
		CorrelationID: optional(correlationID),
		Payload:       payload,
		Metadata:      metadata,
	}
}

// SubjectValue returns the subject or "" when unset.
func (e EventEnvelope) SubjectValue() string {
	if e.Subject == nil {
		return ""
	}
	return *e.Subject
}

// CorrelationValue returns the correlation id or "" when unset.
func (e EventEnvelope) CorrelationValue() string {
	if e.CorrelationID == nil {
		return ""
	}
	return *e.CorrelationID
}

// DecodePayload unmarshals the payload into v.
func (e EventEnvelope) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return NewAppError(ErrCodeOtherSerialization, "decode envelope payload", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
