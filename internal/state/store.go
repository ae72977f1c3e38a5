// Package state is the persistence facade adapters use to record queued or
// published units of work before reporting success.
package state

import (
	"context"
	"fmt"
	"strings"

	"eventgate/internal/types"
)

// Default key prefixes used by the components.
const (
	PrefixEmailQueued     = "events/email/queued"
	PrefixSendgridQueued  = "events/email/sendgrid/queued"
	PrefixTimerScheduled  = "events/timer/scheduled"
	PrefixWebhookReceived = "events/webhook/received"
	PrefixDummyLast       = "events/dummy/last"
)

// Store is the write capability. Failures are Other-class errors.
type Store interface {
	Write(ctx context.Context, key string, value []byte, metadata map[string]string) error
}

// Reader is implemented by stores that can return what they wrote.
type Reader interface {
	Read(ctx context.Context, key string) (value []byte, found bool, err error)
}

// ReadWriter combines both capabilities.
type ReadWriter interface {
	Store
	Reader
}

// Key returns "<prefix>/<receiptID>.json".
func Key(prefix, receiptID string) string {
	return strings.TrimRight(prefix, "/") + "/" + receiptID + ".json"
}

// Persist writes value and converts a failure into a sideband message instead
// of an error. The returned string is empty on success and is meant for a
// result's state_error field.
func Persist(ctx context.Context, store Store, key string, value []byte, metadata map[string]string) string {
	if store == nil {
		return "state store unavailable"
	}
	if err := store.Write(ctx, key, value, metadata); err != nil {
		return err.Error()
	}
	return ""
}

func persistenceError(op, key string, err error) error {
	return types.NewAppErrorWithDetails(types.ErrCodeOtherPersistence,
		fmt.Sprintf("state %s failed for %s", op, key), err,
		map[string]any{"key": key})
}
