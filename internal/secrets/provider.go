// Package secrets implements the audited secret resolution protocol: a small
// capability interface over a secret store, several stores behind it, and the
// builders that turn resolution outcomes into metadata-only audit envelopes.
package secrets

import (
	"context"
	"sort"
	"sync"

	"eventgate/internal/types"
)

// Provider is the secret-store capability adapters resolve credentials through.
//
// GetSecret returns found=false (and a nil error) when the key does not exist.
// A non-nil error means the store itself failed and is always Auth-class.
type Provider interface {
	GetSecret(ctx context.Context, key string) (value []byte, found bool, err error)
}

// StaticProvider serves secrets from an in-memory map. It backs fixtures and
// tests and is safe for concurrent use.
type StaticProvider struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewStaticProvider copies secrets into a new provider.
func NewStaticProvider(secrets map[string][]byte) *StaticProvider {
	p := &StaticProvider{secrets: make(map[string][]byte, len(secrets))}
	for k, v := range secrets {
		p.secrets[k] = append([]byte(nil), v...)
	}
	return p
}

// NewStaticProviderFromStrings is NewStaticProvider for string literals.
func NewStaticProviderFromStrings(secrets map[string]string) *StaticProvider {
	p := &StaticProvider{secrets: make(map[string][]byte, len(secrets))}
	for k, v := range secrets {
		p.secrets[k] = []byte(v)
	}
	return p
}

// EmptyProvider returns a provider with no secrets.
func EmptyProvider() *StaticProvider {
	return NewStaticProvider(nil)
}

// GetSecret implements Provider.
func (p *StaticProvider) GetSecret(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.secrets[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put stores or replaces a secret.
func (p *StaticProvider) Put(key string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secrets[key] = append([]byte(nil), value...)
}

// Delete removes a secret and reports whether it existed.
func (p *StaticProvider) Delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.secrets[key]
	delete(p.secrets, key)
	return ok
}

// Keys lists stored keys in sorted order.
func (p *StaticProvider) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.secrets))
	for k := range p.secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unavailable is the provider used where no secret store is wired. Every
// lookup fails with an Auth error.
type Unavailable struct {
	Reason string
}

// GetSecret implements Provider.
func (u Unavailable) GetSecret(_ context.Context, key string) ([]byte, bool, error) {
	reason := u.Reason
	if reason == "" {
		reason = "secret store is not available in this runtime"
	}
	return nil, false, types.NewAppErrorWithDetails(types.ErrCodeAuthStoreUnavailable, reason, nil,
		map[string]any{"key": key})
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = Unavailable{}
)
