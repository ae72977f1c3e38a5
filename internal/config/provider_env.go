package config

import (
	"context"
	"os"
)

// EnvVarSource implements ParameterSource by reading OS environment
// variables. Local runs use it in place of SSM.
type EnvVarSource struct {
	lookup func(string) (string, bool)
}

// NewEnvVarSource creates an EnvVarSource backed by os.LookupEnv.
func NewEnvVarSource() *EnvVarSource {
	return &EnvVarSource{lookup: os.LookupEnv}
}

// GetParametersBatch resolves each key as an environment variable name.
// Missing keys are omitted.
func (p *EnvVarSource) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := p.lookup(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
