package types

// redactedPlaceholder replaces secret values in logs, serialized config and returned requests.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// Redacted is exported for adapters that mask header values in returned records.
const Redacted = redactedPlaceholder

// SecretString holds a credential loaded from configuration. String and
// MarshalJSON never return the raw value; call Unmask where the plaintext is
// genuinely required (an outbound Authorization header, a DSN).
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the plaintext.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}

// sensitiveHeaders are masked by RedactHeaders. Names are lowercase.
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"x-api-key":           {},
	"x-twilio-signature":  {},
	"cookie":              {},
}

// RedactHeaders returns a copy of headers with credential-bearing values masked.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, ok := sensitiveHeaders[lowerASCII(k)]; ok {
			out[k] = redactedPlaceholder
			continue
		}
		out[k] = v
	}
	return out
}
