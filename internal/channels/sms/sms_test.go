package sms

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgate/internal/secrets"
	"eventgate/internal/types"
)

func tenant() types.TenantCtx {
	return types.MustTenantCtx("prod", "acme")
}

func TestHandleInbound_AliasRouting(t *testing.T) {
	cfg := SourceConfig{PhoneAliases: map[string]string{"+15550001": "support"}}
	env := HandleInbound(cfg, tenant(), WebhookPayload{
		From:       "+15559999",
		To:         "+15550001",
		Body:       "help",
		MessageSID: "SM123",
		Raw:        json.RawMessage(`{"AccountSid":"AC1"}`),
		Headers:    map[string]string{"User-Agent": "TwilioProxy/1.1"},
	})

	assert.Equal(t, "sms.in.twilio.support", env.Topic)
	assert.Equal(t, InboundEventType, env.Type)
	assert.Equal(t, SourceName, env.Source)
	assert.Equal(t, "+15550001", env.SubjectValue())
	assert.Equal(t, "SM123", env.CorrelationValue())
	assert.Equal(t, types.Metadata{
		"provider":          "twilio",
		"from":              "+15559999",
		"to":                "+15550001",
		"message_sid":       "SM123",
		"signature_valid":   "true",
		"header:user-agent": "TwilioProxy/1.1",
	}, env.Metadata)
	assert.JSONEq(t, `{"from":"+15559999","to":"+15550001","body":"help","message_sid":"SM123","raw":{"AccountSid":"AC1"}}`,
		string(env.Payload))
}

func TestHandleInbound_UnknownNumberAndSignatureFlag(t *testing.T) {
	cfg := SourceConfig{SigningSecretRef: "TWILIO_AUTH_TOKEN"}

	env := HandleInbound(cfg, tenant(), WebhookPayload{To: "+15550002", MessageSID: "SM1"})
	assert.Equal(t, "sms.in.twilio.unknown", env.Topic)
	assert.Equal(t, "false", env.Metadata[types.MetaSignatureValid])
	assert.JSONEq(t, `{"from":"","to":"+15550002","body":"","message_sid":"SM1","raw":null}`, string(env.Payload))

	env = HandleInbound(cfg, tenant(), WebhookPayload{To: "+15550002", SignatureValidated: true})
	assert.Equal(t, "true", env.Metadata[types.MetaSignatureValid])
}

func outbound(topic, payload string) types.EventEnvelope {
	return types.NewEvent(topic, "com.greentic.sms.twilio.outbound.v1", SourceName, tenant(), "", "", json.RawMessage(payload), nil)
}

func TestBuildSendRequest(t *testing.T) {
	cfg := SinkConfig{AccountSID: "AC123", AuthTokenRef: "TWILIO_AUTH_TOKEN", DefaultFrom: "+15550000"}
	p := secrets.NewStaticProviderFromStrings(map[string]string{"TWILIO_AUTH_TOKEN": "tok"})

	req, err := BuildSendRequest(context.Background(), cfg, outbound("sms.out.twilio", `{"to":"+15551111","body":"hi"}`), p)
	require.NoError(t, err)
	assert.Equal(t, "AC123", req.AccountSID)
	assert.Equal(t, "TWILIO_AUTH_TOKEN", req.AuthTokenRef)
	assert.Equal(t, "https://api.twilio.com/2010-04-01/Accounts/AC123/Messages.json", req.URL)
	assert.Equal(t, map[string]string{"To": "+15551111", "Body": "hi", "From": "+15550000"}, req.Body)
	require.Len(t, req.SecretEvents, 1)
	assert.Equal(t, secrets.TopicPut, req.SecretEvents[0].Topic)

	encoded, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), `"tok"`)

	req, err = BuildSendRequest(context.Background(), cfg, outbound("sms.out.twilio.alerts", `{"to":"+1","body":"b","from":"+2"}`), secrets.EmptyProvider())
	require.NoError(t, err)
	assert.Equal(t, "+2", req.Body["From"])
	require.Len(t, req.SecretEvents, 1)
	assert.Equal(t, secrets.TopicMissingDetected, req.SecretEvents[0].Topic)
}

func TestBuildSendRequest_NoTokenRefNoFrom(t *testing.T) {
	req, err := BuildSendRequest(context.Background(), SinkConfig{AccountSID: "AC1"},
		outbound("sms.out.twilio", `{"to":"+1","body":"b"}`), secrets.Unavailable{})
	require.NoError(t, err)
	assert.Empty(t, req.SecretEvents)
	assert.NotContains(t, req.Body, "From")
}

func TestBuildSendRequest_Errors(t *testing.T) {
	ctx := context.Background()
	cfg := SinkConfig{AccountSID: "AC1"}

	_, err := BuildSendRequest(ctx, cfg, outbound("sms.out.vonage", `{"to":"+1","body":"b"}`), secrets.EmptyProvider())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfig))
	assert.Contains(t, err.Error(), "unsupported sms topic sms.out.vonage")

	_, err = BuildSendRequest(ctx, cfg, outbound("sms.out.twilio", `{"body":"b"}`), secrets.EmptyProvider())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing string field to")

	_, err = BuildSendRequest(ctx, cfg, outbound("sms.out.twilio", `{"to":"+1"}`), secrets.EmptyProvider())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing string field body")

	withRef := SinkConfig{AccountSID: "AC1", AuthTokenRef: "TWILIO_AUTH_TOKEN"}
	_, err = BuildSendRequest(ctx, withRef, outbound("sms.out.twilio", `{}`), secrets.Unavailable{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindAuth), "token is resolved before fields are checked")
}

func TestSignature(t *testing.T) {
	token := []byte("12345")
	fullURL := "https://mycompany.com/myapp.php?foo=1&bar=2"
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}

	sig := ComputeSignature(token, fullURL, params)
	assert.Equal(t, "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", sig)
	assert.True(t, ValidSignature(token, fullURL, params, sig))
	assert.False(t, ValidSignature([]byte("other"), fullURL, params, sig))
	assert.False(t, ValidSignature(token, fullURL+"&x=1", params, sig))
	assert.False(t, ValidSignature(nil, fullURL, params, sig))
	assert.False(t, ValidSignature(token, fullURL, params, ""))
}

func TestPayloadFromForm(t *testing.T) {
	form := url.Values{"From": {"+1"}, "To": {"+2"}, "Body": {"hello"}, "MessageSid": {"SM9"}, "NumMedia": {"0"}}
	p := PayloadFromForm(form, map[string]string{"X-Twilio-Signature": "abc"}, true)

	assert.Equal(t, "+1", p.From)
	assert.Equal(t, "+2", p.To)
	assert.Equal(t, "hello", p.Body)
	assert.Equal(t, "SM9", p.MessageSID)
	assert.True(t, p.SignatureValidated)
	assert.JSONEq(t, `{"From":"+1","To":"+2","Body":"hello","MessageSid":"SM9","NumMedia":"0"}`, string(p.Raw))
}
