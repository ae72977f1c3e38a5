// Package channels holds helpers shared by the channel adapters in its
// subpackages: payload field extraction and metadata assembly.
package channels

import (
	"encoding/json"
	"sort"

	"eventgate/internal/types"
)

// Payload is a decoded JSON object taken from an envelope payload.
type Payload map[string]any

// DecodePayload decodes raw as an object. Non-object documents decode to an
// empty Payload so field lookups fail with missing-field errors.
func DecodePayload(raw json.RawMessage) Payload {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil || p == nil {
		return Payload{}
	}
	return p
}

// String returns the string field key or a Config error naming it.
func (p Payload) String(key string) (string, error) {
	if s, ok := p[key].(string); ok {
		return s, nil
	}
	return "", types.MissingFieldError("string", key)
}

// OptionalString returns the string field key, or "" when absent or not a string.
func (p Payload) OptionalString(key string) string {
	s, _ := p[key].(string)
	return s
}

// StringArray returns the string elements of array field key. The field must
// hold at least one string; non-string elements are skipped.
func (p Payload) StringArray(key string) ([]string, error) {
	out := p.OptionalStringArray(key)
	if len(out) == 0 {
		return nil, types.MissingFieldError("string array", key)
	}
	return out, nil
}

// OptionalStringArray returns the string elements of array field key, or an
// empty slice.
func (p Payload) OptionalStringArray(key string) []string {
	arr, _ := p[key].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// AddHeaders writes one header:<lowercased-name> entry per header. Names are
// visited in sorted order so that case-colliding names resolve the same way
// on every call.
func AddHeaders(md types.Metadata, headers map[string]string) {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		md.Set(types.HeaderKey(k), headers[k])
	}
}

// LookupHeader finds name case-insensitively. When several spellings are
// present the lexically smallest one wins.
func LookupHeader(headers map[string]string, name string) (string, bool) {
	want := types.HeaderKey(name)
	var (
		found    bool
		bestName string
		value    string
	)
	for k, v := range headers {
		if types.HeaderKey(k) != want {
			continue
		}
		if !found || k < bestName {
			found, bestName, value = true, k, v
		}
	}
	return value, found
}

// FormatBool renders the "true"/"false" metadata flag values.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
