// Package sms maps Twilio webhooks onto event envelopes and builds Twilio
// Messages API requests from outbound envelopes.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"eventgate/internal/channels"
	"eventgate/internal/secrets"
	"eventgate/internal/types"
)

const (
	SourceName       = "sms-provider"
	InboundEventType = "com.greentic.sms.twilio.inbound.v1"
	ProviderTwilio   = "twilio"

	MetaFrom       = "from"
	MetaTo         = "to"
	MetaMessageSID = "message_sid"

	unknownAlias        = "unknown"
	outboundTopicPrefix = "sms.out.twilio"
	authTokenContext    = "twilio auth token"
	messagesURLFormat   = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"
)

// SourceConfig maps inbound numbers to the alias used as topic suffix.
type SourceConfig struct {
	PhoneAliases     map[string]string `json:"phone_aliases" yaml:"phone_aliases"`
	SigningSecretRef string            `json:"signing_secret_ref,omitempty" yaml:"signing_secret_ref"`
}

// SinkConfig describes the Twilio account used for outbound messages.
type SinkConfig struct {
	AccountSID   string `json:"account_sid" yaml:"account_sid" validate:"required"`
	AuthTokenRef string `json:"auth_token_ref,omitempty" yaml:"auth_token_ref"`
	DefaultFrom  string `json:"default_from,omitempty" yaml:"default_from"`
}

// WebhookPayload is an inbound message as posted by Twilio.
// SignatureValidated is asserted by the caller.
type WebhookPayload struct {
	From               string            `json:"from"`
	To                 string            `json:"to"`
	Body               string            `json:"body"`
	MessageSID         string            `json:"message_sid"`
	Raw                json.RawMessage   `json:"raw,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
	SignatureValidated bool              `json:"signature_validated,omitempty"`
}

// HandleInbound builds the envelope for an inbound message. Numbers without
// an alias are routed to sms.in.twilio.unknown. No secret is resolved here.
func HandleInbound(cfg SourceConfig, tenant types.TenantCtx, payload WebhookPayload) types.EventEnvelope {
	alias, ok := cfg.PhoneAliases[payload.To]
	if !ok {
		alias = unknownAlias
	}

	md := types.Metadata{}
	md.Set(types.MetaProvider, ProviderTwilio)
	md.Set(MetaFrom, payload.From)
	md.Set(MetaTo, payload.To)
	md.Set(MetaMessageSID, payload.MessageSID)
	md.Set(types.MetaSignatureValid, channels.FormatBool(payload.SignatureValidated || cfg.SigningSecretRef == ""))
	channels.AddHeaders(md, payload.Headers)

	raw := payload.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	body, _ := json.Marshal(map[string]any{
		"from":        payload.From,
		"to":          payload.To,
		"body":        payload.Body,
		"message_sid": payload.MessageSID,
		"raw":         raw,
	})
	return types.NewEvent("sms.in.twilio."+alias, InboundEventType, SourceName, tenant,
		payload.To, payload.MessageSID, body, md)
}

// SendRequest is a Twilio Messages API call. Body holds the form fields; the
// auth token is referenced by name only.
type SendRequest struct {
	AccountSID   string                `json:"account_sid"`
	AuthTokenRef string                `json:"auth_token_ref,omitempty"`
	URL          string                `json:"url"`
	Body         map[string]string     `json:"body"`
	SecretEvents []types.EventEnvelope `json:"secret_events"`
}

// BuildSendRequest builds the Twilio call for an outbound envelope. The topic
// must start with sms.out.twilio. The configured auth token is resolved before
// the payload fields are read; "to" and "body" are required and "from" falls
// back to the configured default.
func BuildSendRequest(ctx context.Context, cfg SinkConfig, env types.EventEnvelope, p secrets.Provider) (*SendRequest, error) {
	if !strings.HasPrefix(env.Topic, outboundTopicPrefix) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConfigUnsupportedTopic,
			"unsupported sms topic "+env.Topic, nil, map[string]any{"topic": env.Topic})
	}

	secretEvents := []types.EventEnvelope{}
	if cfg.AuthTokenRef != "" {
		res, err := secrets.Resolve(ctx, p, secrets.Lookup{
			Key:     cfg.AuthTokenRef,
			Scope:   secrets.ScopeTenant,
			Tenant:  env.Tenant,
			Source:  SourceName,
			Context: authTokenContext,
		})
		if err != nil {
			return nil, err
		}
		secretEvents = append(secretEvents, res.Events...)
	}

	fields := channels.DecodePayload(env.Payload)
	to, err := fields.String("to")
	if err != nil {
		return nil, err
	}
	body, err := fields.String("body")
	if err != nil {
		return nil, err
	}
	from := fields.OptionalString("from")
	if from == "" {
		from = cfg.DefaultFrom
	}

	form := map[string]string{"To": to, "Body": body}
	if from != "" {
		form["From"] = from
	}
	return &SendRequest{
		AccountSID:   cfg.AccountSID,
		AuthTokenRef: cfg.AuthTokenRef,
		URL:          MessagesURL(cfg.AccountSID),
		Body:         form,
		SecretEvents: secretEvents,
	}, nil
}

// MessagesURL is the Messages endpoint for accountSID.
func MessagesURL(accountSID string) string {
	return fmt.Sprintf(messagesURLFormat, accountSID)
}
