package secrets

import (
	"context"
)

// Resolution outcomes reported to a ResolutionRecorder.
const (
	OutcomeFound   = "found"
	OutcomeMissing = "missing"
	OutcomeError   = "error"
)

// ResolutionRecorder receives one observation per lookup.
type ResolutionRecorder interface {
	RecordSecretResolution(ctx context.Context, source, outcome string)
}

// Instrumented decorates a Provider with resolution metrics. The recorded
// source is fixed at construction because the provider never sees the caller.
type Instrumented struct {
	next     Provider
	source   string
	recorder ResolutionRecorder
}

// NewInstrumented wraps next.
func NewInstrumented(next Provider, source string, recorder ResolutionRecorder) *Instrumented {
	return &Instrumented{next: next, source: source, recorder: recorder}
}

// GetSecret implements Provider.
func (i *Instrumented) GetSecret(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := i.next.GetSecret(ctx, key)
	outcome := OutcomeMissing
	switch {
	case err != nil:
		outcome = OutcomeError
	case found:
		outcome = OutcomeFound
	}
	i.recorder.RecordSecretResolution(ctx, i.source, outcome)
	return value, found, err
}

var _ Provider = (*Instrumented)(nil)
