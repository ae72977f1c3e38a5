package secrets

import (
	"context"
	"errors"

	"eventgate/internal/types"
)

// Common scopes passed to Resolve.
const (
	ScopeTenant = "tenant"
	ScopeTeam   = "team"
	ScopeEnv    = "env"
)

// Lookup describes one resolution attempt.
type Lookup struct {
	Key     string
	Scope   string
	Tenant  types.TenantCtx
	Source  string // adapter identity, also recorded as detected_by
	Context string // what the caller was trying to do when the key was needed
}

// Resolution is the outcome of Resolve: the value when found plus exactly one
// audit envelope.
type Resolution struct {
	Value  []byte                `json:"value,omitempty"`
	Events []types.EventEnvelope `json:"events"`
}

// Found reports whether the secret resolved to a value.
func (r *Resolution) Found() bool {
	return r.Value != nil
}

// Resolve looks up l.Key through p and pairs the outcome with its audit envelope.
//
// A missing secret is not an error: the resolution carries no value and a
// missing.detected event. A provider failure aborts the attempt without
// producing any event.
func Resolve(ctx context.Context, p Provider, l Lookup) (*Resolution, error) {
	value, found, err := p.GetSecret(ctx, l.Key)
	if err != nil {
		return nil, asAuthError(err, l.Key)
	}
	if !found {
		return &Resolution{
			Events: []types.EventEnvelope{
				MissingDetectedEvent(l.Key, l.Scope, l.Tenant, l.Source, l.Context, l.Source),
			},
		}, nil
	}
	if value == nil {
		value = []byte{}
	}
	return &Resolution{
		Value:  value,
		Events: []types.EventEnvelope{PutEvent(l.Key, l.Scope, l.Tenant, l.Source)},
	}, nil
}

// ResolveAll resolves every lookup in order, attempting each one even when an
// earlier key was missing. Events from all attempts are concatenated. The
// first provider failure aborts the whole set.
func ResolveAll(ctx context.Context, p Provider, lookups []Lookup) ([]*Resolution, []types.EventEnvelope, error) {
	results := make([]*Resolution, 0, len(lookups))
	var events []types.EventEnvelope
	for _, l := range lookups {
		res, err := Resolve(ctx, p, l)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
		events = append(events, res.Events...)
	}
	return results, events, nil
}

// asAuthError keeps AppErrors from providers as they are and wraps anything
// else so capability failures are always Auth-class.
func asAuthError(err error, key string) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Kind() == types.KindAuth {
		return err
	}
	return types.NewAppErrorWithDetails(types.ErrCodeAuthSecretStore, "secrets-store error", err,
		map[string]any{"key": key})
}
