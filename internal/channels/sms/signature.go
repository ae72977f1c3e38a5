package sms

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader is the header Twilio signs webhook requests with.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature returns the Twilio request signature: base64 HMAC-SHA1
// under authToken of the full URL followed by every form parameter name and
// value, sorted by name.
func ComputeSignature(authToken []byte, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, authToken)
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether signature matches the request.
func ValidSignature(authToken []byte, fullURL string, params url.Values, signature string) bool {
	if len(authToken) == 0 || signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PayloadFromForm builds a WebhookPayload from Twilio's form fields. Raw
// carries every field, flattened to its first value.
func PayloadFromForm(form url.Values, headers map[string]string, validated bool) WebhookPayload {
	flat := make(map[string]string, len(form))
	for k := range form {
		flat[k] = form.Get(k)
	}
	raw, _ := json.Marshal(flat)
	return WebhookPayload{
		From:               form.Get("From"),
		To:                 form.Get("To"),
		Body:               form.Get("Body"),
		MessageSID:         form.Get("MessageSid"),
		Raw:                raw,
		Headers:            headers,
		SignatureValidated: validated,
	}
}
