// Package config defines the process configuration of the eventgate binaries.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Channel definitions (webhook routes, timer schedules, sink settings) live in a
// separate YAML file named by CHANNELS_FILE; see LoadChannels.
package config

import (
	"time"

	"eventgate/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Backend names accepted by the *_BACKEND variables.
const (
	SecretsBackendStatic = "static"
	SecretsBackendEnv    = "env"
	SecretsBackendSSM    = "ssm"

	StateBackendMemory   = "memory"
	StateBackendRedis    = "redis"
	StateBackendPostgres = "postgres"
	StateBackendNone     = "none"

	SinkBackendLog   = "log"
	SinkBackendSQS   = "sqs"
	SinkBackendKafka = "kafka"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"eventgate"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Tenant        TenantConfig
	Channels      ChannelsConfig
	Secrets       SecretsConfig
	State         StateConfig
	Sink          SinkConfig
	AWS           AWSConfig
	Transport     TransportConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
	MaxBodyBytes    int64         `envconfig:"SERVER_MAX_BODY_BYTES" default:"1048576" validate:"gt=0"`
	// PublicURL is the externally visible base URL. Twilio signs the full
	// public URL, so SMS signature checks need it.
	PublicURL string `envconfig:"PUBLIC_BASE_URL" validate:"omitempty,url"`
}

// TenantConfig names the tenant used when a request does not carry one.
// Both fields empty means every request must supply its tenant.
type TenantConfig struct {
	DefaultEnv    string `envconfig:"DEFAULT_TENANT_ENV" validate:"required_with=DefaultTenant"`
	DefaultTenant string `envconfig:"DEFAULT_TENANT" validate:"required_with=DefaultEnv"`
}

// ChannelsConfig points at the channel definition file.
type ChannelsConfig struct {
	File string `envconfig:"CHANNELS_FILE"`
}

// SecretsConfig selects the secret store consulted by channel adapters.
type SecretsConfig struct {
	Backend   string `envconfig:"SECRETS_BACKEND" default:"env" validate:"oneof=static env ssm"`
	SSMPrefix string `envconfig:"SECRETS_SSM_PREFIX" default:"/eventgate" validate:"required_if=Backend ssm"`
	EnvPrefix string `envconfig:"SECRETS_ENV_PREFIX" default:"EVENTGATE_SECRET_"`
}

// StateConfig selects the persistence backend for queued and received work.
type StateConfig struct {
	Backend   string        `envconfig:"STATE_BACKEND" default:"memory" validate:"oneof=memory redis postgres none"`
	RedisURL  SecretString  `envconfig:"REDIS_URL" validate:"required_if=Backend redis,omitempty,url"`
	Namespace string        `envconfig:"STATE_NAMESPACE" default:"eventgate"`
	TTL       time.Duration `envconfig:"STATE_TTL" default:"0s"`
	// CompressThreshold enables zstd compression of values at least this
	// many bytes long. Zero disables it.
	CompressThreshold int `envconfig:"STATE_COMPRESS_THRESHOLD" default:"0" validate:"gte=0"`

	Database DatabaseConfig
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// SinkConfig selects where emitted envelopes go.
type SinkConfig struct {
	Backend       string   `envconfig:"SINK_BACKEND" default:"log" validate:"oneof=log sqs kafka"`
	EventsQueue   string   `envconfig:"SQS_EVENTS" validate:"required_if=Backend sqs,omitempty,url"`
	RetryQueue    string   `envconfig:"SQS_WEBHOOK_RETRY" validate:"omitempty,url"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS" validate:"required_if=Backend kafka"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC" default:"eventgate.events"`
	TopicPerEvent bool     `envconfig:"KAFKA_TOPIC_PER_EVENT" default:"false"`
}

// AWSConfig holds regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// TransportConfig holds settings for outbound HTTP.
type TransportConfig struct {
	UserAgent    string        `envconfig:"HTTP_USER_AGENT"`
	Timeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	MaxRedirects int           `envconfig:"HTTP_MAX_REDIRECTS" default:"3" validate:"gte=0"`
	// AllowCIDRs exempts ranges from the SSRF guard (local development).
	AllowCIDRs []string `envconfig:"HTTP_ALLOW_CIDRS"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"EventGate"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// DefaultTenant returns the configured fallback tenant, or the zero value
// when none is set.
func (c *Config) DefaultTenant() (types.TenantCtx, error) {
	if c.Tenant.DefaultEnv == "" && c.Tenant.DefaultTenant == "" {
		return types.TenantCtx{}, nil
	}
	return types.NewTenantCtx(c.Tenant.DefaultEnv, c.Tenant.DefaultTenant)
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching values from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrChannels indicates an unreadable or invalid channel definition file.
	ErrChannels ConfigErrorType = "CHANNELS_INVALID"
)
