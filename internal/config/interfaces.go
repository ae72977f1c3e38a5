package config

import "context"

// ParameterSource resolves the _SSM_PARAM pointers found in the environment
// during LoadConfig. It is separate from the channel secret store: these are
// process settings (DSNs, queue URLs), fetched once at startup.
type ParameterSource interface {
	// GetParametersBatch returns the plaintext value of every key it could
	// resolve. Keys it does not know are omitted from the map.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
