package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvProvider resolves secrets from environment variables for local
// development, where the gateway runs without a live secret store.
//
// A key such as "events/webhook/dev/acme/_/credentials" is looked up as
// PREFIX + "EVENTS_WEBHOOK_DEV_ACME___CREDENTIALS".
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an EnvProvider reading variables named prefix+KEY.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

// GetSecret implements Provider. Environment lookups never fail.
func (p *EnvProvider) GetSecret(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.lookup(p.VarName(key))
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// VarName returns the environment variable consulted for key.
func (p *EnvProvider) VarName(key string) string {
	return p.prefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}

var _ Provider = (*EnvProvider)(nil)
