// Package receipt derives content-addressed receipt identifiers. Callers use
// them to deduplicate repeated delivery of the same logical payload.
package receipt

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"eventgate/internal/types"
)

// Namespace is the fixed UUIDv5 namespace receipt ids are derived under.
var Namespace = uuid.NameSpaceOID

// StableID returns the UUIDv5 of value's RFC 8785 canonical JSON encoding.
// Values that encode to the same canonical document share an id regardless of
// map ordering or insignificant whitespace in embedded raw JSON.
func StableID(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeOtherSerialization, "encode receipt value", err)
	}
	return FromJSON(raw)
}

// FromJSON is StableID for an already-encoded JSON document.
func FromJSON(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeOtherSerialization, "canonicalize receipt value", err)
	}
	return uuid.NewSHA1(Namespace, canonical).String(), nil
}

// MustStableID panics when value cannot be encoded. Use only for values built
// from JSON-safe types.
func MustStableID(value any) string {
	id, err := StableID(value)
	if err != nil {
		panic(err)
	}
	return id
}
