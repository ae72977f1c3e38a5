// Package email maps provider-delivered mail onto event envelopes and builds
// provider-specific send requests from outbound envelopes.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eventgate/internal/channels"
	"eventgate/internal/secrets"
	"eventgate/internal/types"
)

const (
	SourceName = "email-provider"
	EventType  = "com.greentic.email.generic.v1"

	MetaFolderOrLabel = "folder_or_label"
	MetaMessageID     = "message_id"
)

// Provider identifies a mail API.
type Provider string

const (
	ProviderMsGraph Provider = "msgraph"
	ProviderGmail   Provider = "gmail"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderMsGraph || p == ProviderGmail
}

// UnmarshalJSON rejects unknown providers.
func (p *Provider) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := Provider(strings.ToLower(s))
	if !v.Valid() {
		return types.ConfigErrorf(types.ErrCodeConfigInvalid, "unknown email provider %q", s)
	}
	*p = v
	return nil
}

// requiredSecret is one credential a provider needs to send.
type requiredSecret struct {
	key     string
	context string
}

// requiredSecrets is fixed per provider.
var requiredSecrets = map[Provider][]requiredSecret{
	ProviderMsGraph: {
		{key: "MSGRAPH_CLIENT_SECRET", context: "msgraph client secret"},
	},
	ProviderGmail: {
		{key: "GMAIL_CLIENT_SECRET", context: "gmail credential"},
		{key: "GMAIL_REFRESH_TOKEN", context: "gmail credential"},
	},
}

// InboundEmail is a message as delivered by a provider poller or push hook.
type InboundEmail struct {
	Provider      Provider          `json:"provider" validate:"required"`
	FolderOrLabel string            `json:"folder_or_label" validate:"required"`
	MessageID     string            `json:"message_id" validate:"required"`
	Subject       string            `json:"subject"`
	From          string            `json:"from"`
	To            []string          `json:"to"`
	CC            []string          `json:"cc,omitempty"`
	BCC           []string          `json:"bcc,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
	Body          string            `json:"body"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// MapInbound builds the envelope for an inbound message. The topic is
// email.in.<provider>.<folder or label>.
func MapInbound(tenant types.TenantCtx, msg InboundEmail) types.EventEnvelope {
	md := types.Metadata{}
	md.Set(types.MetaProvider, string(msg.Provider))
	md.Set(MetaFolderOrLabel, msg.FolderOrLabel)
	md.Set(MetaMessageID, msg.MessageID)
	channels.AddHeaders(md, msg.Headers)

	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	payload, _ := json.Marshal(map[string]any{
		"subject":     msg.Subject,
		"from":        msg.From,
		"to":          nonNil(msg.To),
		"cc":          nonNil(msg.CC),
		"bcc":         nonNil(msg.BCC),
		"body":        msg.Body,
		"received_at": msg.ReceivedAt.UTC(),
		"headers":     headers,
	})

	topic := fmt.Sprintf("email.in.%s.%s", msg.Provider, msg.FolderOrLabel)
	return types.NewEvent(topic, EventType, SourceName, tenant, msg.Subject, msg.MessageID, payload, md)
}

// SendRequest is a provider API call body plus the audit trail of the
// credentials it needs. Secret values are never included.
type SendRequest struct {
	Provider     Provider              `json:"provider"`
	Payload      json.RawMessage       `json:"payload"`
	SecretEvents []types.EventEnvelope `json:"secret_events"`
}

// DetectOutboundProvider maps email.out.msgraph* and email.out.gmail* topics.
func DetectOutboundProvider(topic string) (Provider, error) {
	switch {
	case strings.HasPrefix(topic, "email.out.msgraph"):
		return ProviderMsGraph, nil
	case strings.HasPrefix(topic, "email.out.gmail"):
		return ProviderGmail, nil
	default:
		return "", types.NewAppErrorWithDetails(types.ErrCodeConfigUnsupportedTopic,
			"unsupported outbound email topic: "+topic, nil, map[string]any{"topic": topic})
	}
}

// EnsureSecrets resolves every credential provider requires, in order, even
// when an earlier one is missing. All audit events are returned.
func EnsureSecrets(ctx context.Context, provider Provider, p secrets.Provider, tenant types.TenantCtx, source string) ([]types.EventEnvelope, error) {
	required := requiredSecrets[provider]
	lookups := make([]secrets.Lookup, 0, len(required))
	for _, r := range required {
		lookups = append(lookups, secrets.Lookup{
			Key:     r.key,
			Scope:   secrets.ScopeTenant,
			Tenant:  tenant,
			Source:  source,
			Context: r.context,
		})
	}
	_, events, err := secrets.ResolveAll(ctx, p, lookups)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []types.EventEnvelope{}
	}
	return events, nil
}

// BuildSendRequest builds the provider call for an outbound envelope. The
// payload must carry a non-empty "to" string array, "subject" and "body";
// "cc", "bcc" and "from" are optional.
func BuildSendRequest(ctx context.Context, env types.EventEnvelope, p secrets.Provider) (*SendRequest, error) {
	provider, err := DetectOutboundProvider(env.Topic)
	if err != nil {
		return nil, err
	}
	fields := channels.DecodePayload(env.Payload)
	to, err := fields.StringArray("to")
	if err != nil {
		return nil, err
	}
	subject, err := fields.String("subject")
	if err != nil {
		return nil, err
	}
	body, err := fields.String("body")
	if err != nil {
		return nil, err
	}
	msg := outboundMessage{
		to:      to,
		subject: subject,
		body:    body,
		cc:      fields.OptionalStringArray("cc"),
		bcc:     fields.OptionalStringArray("bcc"),
		from:    fields.OptionalString("from"),
	}

	secretEvents, err := EnsureSecrets(ctx, provider, p, env.Tenant, SourceName)
	if err != nil {
		return nil, err
	}

	var payload any
	switch provider {
	case ProviderMsGraph:
		payload = msGraphPayload(msg)
	default:
		payload = gmailPayload(msg)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeOtherSerialization, "encode email payload", err)
	}
	return &SendRequest{Provider: provider, Payload: raw, SecretEvents: secretEvents}, nil
}

type outboundMessage struct {
	to, cc, bcc   []string
	subject, body string
	from          string
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func graphRecipients(addrs []string) []graphAddress {
	out := make([]graphAddress, len(addrs))
	for i, a := range addrs {
		out[i].EmailAddress.Address = a
	}
	return out
}

func msGraphPayload(m outboundMessage) map[string]any {
	var from *graphAddress
	if m.from != "" {
		from = &graphRecipients([]string{m.from})[0]
	}
	return map[string]any{
		"message": map[string]any{
			"subject":       m.subject,
			"body":          map[string]string{"contentType": "HTML", "content": m.body},
			"toRecipients":  graphRecipients(m.to),
			"ccRecipients":  graphRecipients(m.cc),
			"bccRecipients": graphRecipients(m.bcc),
			"from":          from,
		},
		"saveToSentItems": false,
	}
}

func gmailPayload(m outboundMessage) map[string]any {
	var from *string
	if m.from != "" {
		from = &m.from
	}
	return map[string]any{
		"message": map[string]any{
			"subject": m.subject,
			"body":    m.body,
			"to":      m.to,
			"cc":      m.cc,
			"bcc":     m.bcc,
			"from":    from,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RedactAddress masks the local part of an address for logging, keeping its
// first character: "alice@example.com" becomes "a***@example.com".
func RedactAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return types.Redacted
	}
	return local[:1] + "***@" + domain
}
