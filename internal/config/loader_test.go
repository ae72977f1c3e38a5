package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testParameterSource is a configurable ParameterSource for SSM resolution tests.
type testParameterSource struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testParameterSource) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// setMinimalEnv sets the variables a local gateway needs. Everything else
// has a default.
func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("OTEL_SERVICE_NAME", "eventgate-test")
	t.Setenv("LOG_LEVEL", "debug")
}

// mapDeps returns loaderDeps backed by envMap. setEnv also writes the real
// environment because envconfig reads os.Getenv directly.
func mapDeps(t *testing.T, envMap map[string]string) loaderDeps {
	t.Helper()
	return loaderDeps{
		lookupEnv: func(key string) (string, bool) {
			v, ok := envMap[key]
			return v, ok
		},
		setEnv: func(key, value string) error {
			envMap[key] = value
			t.Setenv(key, value)
			return nil
		},
		environ: func() []string {
			result := make([]string, 0, len(envMap))
			for k, v := range envMap {
				result = append(result, k+"="+v)
			}
			return result
		},
	}
}

func TestLoadConfigLocalDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "local")
	}
	if cfg.Service != "eventgate-test" {
		t.Errorf("Service = %q, want %q", cfg.Service, "eventgate-test")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want default %q", cfg.Server.Port, "8080")
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Secrets.Backend != SecretsBackendEnv {
		t.Errorf("Secrets.Backend = %q, want %q", cfg.Secrets.Backend, SecretsBackendEnv)
	}
	if cfg.State.Backend != StateBackendMemory {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, StateBackendMemory)
	}
	if cfg.Sink.Backend != SinkBackendLog {
		t.Errorf("Sink.Backend = %q, want %q", cfg.Sink.Backend, SinkBackendLog)
	}
	if cfg.Transport.UserAgent != "" {
		t.Errorf("Transport.UserAgent = %q, want empty so the build version is used", cfg.Transport.UserAgent)
	}
	if cfg.Observability.MetricNamespace != "EventGate" {
		t.Errorf("Observability.MetricNamespace = %q, want %q", cfg.Observability.MetricNamespace, "EventGate")
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want %q", cfg.Build.Version, "dev")
	}

	tenant, err := cfg.DefaultTenant()
	if err != nil {
		t.Fatalf("DefaultTenant returned error: %v", err)
	}
	if !tenant.IsZero() {
		t.Errorf("DefaultTenant = %v, want zero", tenant)
	}
}

func TestLoadConfigSetsUTC(t *testing.T) {
	setMinimalEnv(t)
	original := time.Local
	t.Cleanup(func() { time.Local = original })

	if _, err := LoadConfig(nil); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if time.Local != time.UTC {
		t.Errorf("time.Local = %v, want UTC", time.Local)
	}
}

func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown environment", env: map[string]string{"APP_ENV": "qa"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "trace"}},
		{name: "redis without url", env: map[string]string{"STATE_BACKEND": "redis"}},
		{name: "sqs without queue", env: map[string]string{"SINK_BACKEND": "sqs"}},
		{name: "kafka without brokers", env: map[string]string{"SINK_BACKEND": "kafka"}},
		{name: "unknown secrets backend", env: map[string]string{"SECRETS_BACKEND": "vault"}},
		{name: "half a default tenant", env: map[string]string{"DEFAULT_TENANT": "acme"}},
		{name: "invalid default tenant", env: map[string]string{"DEFAULT_TENANT_ENV": "dev", "DEFAULT_TENANT": "not valid!"}},
		{name: "bad public url", env: map[string]string{"PUBLIC_BASE_URL": "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(nil)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("ConfigError.Type = %q, want %q", cfgErr.Type, ErrValidation)
			}
		})
	}
}

func TestLoadConfigBackends(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache.internal:6379/0")
	t.Setenv("STATE_COMPRESS_THRESHOLD", "4096")
	t.Setenv("SINK_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("DEFAULT_TENANT_ENV", "dev")
	t.Setenv("DEFAULT_TENANT", "acme")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.State.RedisURL.Unmask() != "redis://cache.internal:6379/0" {
		t.Errorf("State.RedisURL = %q", cfg.State.RedisURL.Unmask())
	}
	if cfg.State.RedisURL.String() != "***REDACTED***" {
		t.Errorf("State.RedisURL.String() should be redacted, got %q", cfg.State.RedisURL.String())
	}
	if cfg.State.CompressThreshold != 4096 {
		t.Errorf("State.CompressThreshold = %d, want 4096", cfg.State.CompressThreshold)
	}
	if len(cfg.Sink.KafkaBrokers) != 2 || cfg.Sink.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("Sink.KafkaBrokers = %v", cfg.Sink.KafkaBrokers)
	}
	tenant, err := cfg.DefaultTenant()
	if err != nil {
		t.Fatalf("DefaultTenant returned error: %v", err)
	}
	if tenant.String() != "dev/acme" {
		t.Errorf("DefaultTenant = %q, want dev/acme", tenant.String())
	}
}

func TestLoadConfigSSMResolution(t *testing.T) {
	envMap := map[string]string{
		"APP_ENV":                "staging",
		"STATE_BACKEND":          "redis",
		"REDIS_URL_SSM_PARAM":    "/staging/eventgate/redis_url",
		"DATABASE_URL_SSM_PARAM": "/staging/eventgate/database_url",
	}
	for k, v := range envMap {
		t.Setenv(k, v)
	}
	// Clear inherited values so SSM is the only source.
	for _, k := range []string{"REDIS_URL", "DATABASE_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	source := &testParameterSource{values: map[string]string{
		"/staging/eventgate/redis_url":    "redis://staging:6379",
		"/staging/eventgate/database_url": "postgres://u:p@db:5432/eventgate",
	}}

	cfg, err := loadConfigWithDeps(source, mapDeps(t, envMap))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if source.callCount != 1 {
		t.Errorf("GetParametersBatch called %d times, want 1", source.callCount)
	}
	if len(source.calledWith) != 2 {
		t.Errorf("GetParametersBatch keys = %v, want 2 paths", source.calledWith)
	}
	if cfg.State.RedisURL.Unmask() != "redis://staging:6379" {
		t.Errorf("State.RedisURL = %q, want SSM value", cfg.State.RedisURL.Unmask())
	}
	if cfg.State.Database.URL.Unmask() != "postgres://u:p@db:5432/eventgate" {
		t.Errorf("State.Database.URL = %q, want SSM value", cfg.State.Database.URL.Unmask())
	}
}

func TestLoadConfigSSMSkippedForLocal(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("REDIS_URL_SSM_PARAM", "/local/eventgate/redis_url")
	source := &testParameterSource{}

	if _, err := LoadConfig(source); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if source.callCount != 0 {
		t.Errorf("GetParametersBatch called %d times in local mode, want 0", source.callCount)
	}
}

func TestResolveSSMParamsDirectEnvWins(t *testing.T) {
	envMap := map[string]string{
		"REDIS_URL":           "redis://direct:6379",
		"REDIS_URL_SSM_PARAM": "/prod/eventgate/redis_url",
	}
	source := &testParameterSource{values: map[string]string{"/prod/eventgate/redis_url": "redis://ssm:6379"}}

	if err := resolveSSMParams(source, mapDeps(t, envMap)); err != nil {
		t.Fatalf("resolveSSMParams returned error: %v", err)
	}
	if source.callCount != 0 {
		t.Errorf("GetParametersBatch called %d times, want 0", source.callCount)
	}
	if envMap["REDIS_URL"] != "redis://direct:6379" {
		t.Errorf("REDIS_URL = %q, direct value should win", envMap["REDIS_URL"])
	}
}

func TestResolveSSMParamsErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  ParameterSource
		wantMsg string
	}{
		{
			name:    "nil source",
			source:  nil,
			wantMsg: "ParameterSource is required",
		},
		{
			name:    "source failure",
			source:  &testParameterSource{err: errors.New("throttled")},
			wantMsg: "failed to resolve 1 SSM parameters",
		},
		{
			name:    "missing parameter",
			source:  &testParameterSource{values: map[string]string{}},
			wantMsg: "SSM parameters not found for: SQS_EVENTS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envMap := map[string]string{"SQS_EVENTS_SSM_PARAM": "/prod/eventgate/events_queue"}
			err := resolveSSMParams(tt.source, mapDeps(t, envMap))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Type != ErrSSMResolution {
				t.Fatalf("expected SSM ConfigError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestResolveSSMParamsEmptyPathIgnored(t *testing.T) {
	envMap := map[string]string{"SQS_EVENTS_SSM_PARAM": ""}
	source := &testParameterSource{}
	if err := resolveSSMParams(source, mapDeps(t, envMap)); err != nil {
		t.Fatalf("resolveSSMParams returned error: %v", err)
	}
	if source.callCount != 0 {
		t.Errorf("GetParametersBatch called %d times, want 0", source.callCount)
	}
}

func TestLoadConfigDotenvFile(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("HTTP_USER_AGENT", "")
	os.Unsetenv("HTTP_USER_AGENT")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_USER_AGENT=from-dotenv/2.0\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Transport.UserAgent != "from-dotenv/2.0" {
		t.Errorf("Transport.UserAgent = %q, want value from .env", cfg.Transport.UserAgent)
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	err := &ConfigError{Type: ErrParsing, Message: "bad duration", Err: inner}
	if got := err.Error(); got != "[PARSING_FAILED] bad duration: boom" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	bare := &ConfigError{Type: ErrMissingEnv, Message: "APP_ENV not set"}
	if got := bare.Error(); got != "[MISSING_ENV] APP_ENV not set" {
		t.Errorf("Error() = %q", got)
	}
}
