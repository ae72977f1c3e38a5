// Package bootstrap builds the runtime capabilities of the eventgate binaries
// from the loaded configuration: logger, AWS clients, secret store, state
// store, envelope sink and metrics recorder. Each cmd/* main calls the
// builders it needs during cold start.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"eventgate/internal/config"
	"eventgate/internal/secrets"
	"eventgate/internal/sink"
	"eventgate/internal/state"
	"eventgate/internal/security"
	"eventgate/internal/telemetry"
	"eventgate/internal/transport"
	"eventgate/internal/types"
)

// Recorder is the telemetry surface the binaries use: channel metrics plus
// gateway request metrics.
type Recorder interface {
	telemetry.Recorder
	RecordRequest(method, route, status string, duration time.Duration)
}

// Probe is a named dependency check.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewLogger returns a JSON slog logger at level (debug, info, warn, error).
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// ParameterSource picks the config pointer resolver: none locally, SSM
// everywhere else.
func ParameterSource() config.ParameterSource {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	return config.NewSSMParameterSource(os.Getenv("AWS_REGION"))
}

// LoadAWS loads the shared SDK configuration. AWS_ENDPOINT_URL points every
// client at LocalStack.
func LoadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}
	return awsCfg, nil
}

// NewRecorder returns the CloudWatch recorder when metrics are enabled.
func NewRecorder(cfg *config.Config, awsCfg aws.Config, logger types.Logger) Recorder {
	if !cfg.Observability.MetricsEnabled {
		return telemetry.NoopRecorder{}
	}
	return telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
}

// NewSecretProvider builds the configured secret store, instrumented with
// recorder.
func NewSecretProvider(cfg *config.Config, awsCfg aws.Config, recorder secrets.ResolutionRecorder) (secrets.Provider, error) {
	var p secrets.Provider
	switch cfg.Secrets.Backend {
	case config.SecretsBackendStatic:
		p = secrets.EmptyProvider()
	case config.SecretsBackendEnv:
		p = secrets.NewEnvProvider(cfg.Secrets.EnvPrefix)
	case config.SecretsBackendSSM:
		p = secrets.NewSSMProviderWithClient(ssm.NewFromConfig(awsCfg), cfg.Secrets.SSMPrefix)
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
	}
	return secrets.NewInstrumented(p, cfg.Secrets.Backend, recorder), nil
}

// StateStore is the built store plus what the caller must check and close.
type StateStore struct {
	Store  state.Store
	Probes []Probe
	Close  func()
}

// NewStateStore connects the configured persistence backend. Postgres gets its
// table created on connect.
func NewStateStore(ctx context.Context, cfg *config.Config) (*StateStore, error) {
	out := &StateStore{Close: func() {}}

	switch cfg.State.Backend {
	case config.StateBackendMemory:
		out.Store = state.NewMemoryStore()
	case config.StateBackendNone:
		out.Store = state.FailingStore{Err: errors.New("state backend disabled")}
	case config.StateBackendRedis:
		opts, err := redis.ParseURL(cfg.State.RedisURL.Unmask())
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		out.Store = state.NewRedisStore(client, cfg.State.Namespace, cfg.State.TTL)
		out.Probes = append(out.Probes, Probe{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		out.Close = func() { _ = client.Close() }
	case config.StateBackendPostgres:
		pool, err := NewPool(ctx, cfg.State.Database)
		if err != nil {
			return nil, err
		}
		pg := state.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating state table: %w", err)
		}
		out.Store = pg
		out.Probes = append(out.Probes, Probe{Name: "postgres", Check: pool.Ping})
		out.Close = pool.Close
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}

	if cfg.State.CompressThreshold > 0 {
		compressed, err := state.NewCompressedStore(out.Store, cfg.State.CompressThreshold)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.Store = compressed
	}
	return out, nil
}

// NewPool opens and pings a pgx pool tuned by db.
func NewPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	if !db.URL.IsSet() {
		return nil, errors.New("DATABASE_URL is required for the postgres state backend")
	}
	poolCfg, err := pgxpool.ParseConfig(db.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	if db.MaxConns > 0 {
		poolCfg.MaxConns = int32(db.MaxConns)
	}
	if db.MinConns > 0 {
		poolCfg.MinConns = int32(db.MinConns)
	}
	if db.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = db.MaxConnLifetime
	}
	if db.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = db.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, acquireTimeout(db))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func acquireTimeout(db config.DatabaseConfig) time.Duration {
	if db.AcquireTimeout > 0 {
		return db.AcquireTimeout
	}
	return 5 * time.Second
}

// NewPublisher builds the envelope sink.
func NewPublisher(cfg *config.Config, awsCfg aws.Config, logger types.Logger) (sink.Publisher, error) {
	switch cfg.Sink.Backend {
	case config.SinkBackendLog:
		return sink.NewLogPublisher(logger), nil
	case config.SinkBackendSQS:
		return sink.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.Sink.EventsQueue, logger), nil
	case config.SinkBackendKafka:
		topic := cfg.Sink.KafkaTopic
		if cfg.Sink.TopicPerEvent {
			topic = ""
		}
		return sink.NewKafkaPublisher(sink.NewKafkaWriter(cfg.Sink.KafkaBrokers, topic), cfg.Sink.TopicPerEvent, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Sink.Backend)
	}
}

// NewRequeuer returns the webhook retry queue, or nil when none is configured.
func NewRequeuer(cfg *config.Config, awsCfg aws.Config, logger types.Logger) sink.Requeuer {
	if cfg.Sink.RetryQueue == "" {
		return nil
	}
	return sink.NewSQSRequeuer(sqs.NewFromConfig(awsCfg), cfg.Sink.RetryQueue, logger)
}

// NewTransport returns the outbound HTTP transport behind the SSRF guard.
func NewTransport(cfg *config.Config, name string) (*transport.HTTPTransport, error) {
	guard, err := security.NewGuard(cfg.Transport.AllowCIDRs, nil)
	if err != nil {
		return nil, fmt.Errorf("building SSRF guard: %w", err)
	}
	ua := cfg.Transport.UserAgent
	if ua == "" {
		ua = cfg.Build.UserAgent(cfg.Service)
	}
	client := guard.NewHTTPClient(cfg.Transport.Timeout, cfg.Transport.MaxRedirects)
	return transport.NewHTTPTransport(client, name, transport.WithUserAgent(ua)), nil
}
