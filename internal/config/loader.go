// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Scan environment for _SSM_PARAM suffix variables.
//  4. If APP_ENV != "local", resolve them via the ParameterSource and inject
//     the resolved values back into the environment.
//  5. Use envconfig to process struct tags and populate the Config struct.
//  6. Populate BuildInfo from linker-injected variables.
//  7. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error returned by LoadConfig and LoadChannels.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: REDIS_URL_SSM_PARAM names the SSM
// path holding REDIS_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

const ssmResolveTimeout = 30 * time.Second

// loaderDeps holds the process-global hooks the loader touches, so tests can
// run without mutating the real environment.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the process configuration.
//
// source resolves _SSM_PARAM pointers. It may be nil for local runs, or
// whenever no pointer variables are set.
func LoadConfig(source ParameterSource) (*Config, error) {
	return loadConfigWithDeps(source, defaultDeps())
}

func loadConfigWithDeps(source ParameterSource, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv never overrides variables already present.
	_ = godotenv.Load()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(source, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if _, err := cfg.DefaultTenant(); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "invalid default tenant",
			Err:     err,
		}
	}

	return &cfg, nil
}

// ResolveSecrets runs only the _SSM_PARAM step. Entry points that read a
// handful of variables directly (the timer worker) call it before os.Getenv.
// It is a no-op when APP_ENV is "local".
func ResolveSecrets(source ParameterSource) error {
	appEnv, _ := os.LookupEnv("APP_ENV")
	if appEnv == localEnv {
		return nil
	}
	return resolveSSMParams(source, defaultDeps())
}

// resolveSSMParams fetches every X_SSM_PARAM=/path whose X is not already
// set and exports the value as X. Direct environment values win over SSM.
func resolveSSMParams(source ParameterSource, deps loaderDeps) error {
	type ssmBinding struct {
		targetEnvVar string
		ssmPath      string
	}

	var bindings []ssmBinding
	ssmPathToTarget := make(map[string]string)

	for _, envEntry := range deps.environ() {
		key, ssmPath, ok := strings.Cut(envEntry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		targetEnvVar := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(targetEnvVar); exists {
			continue
		}
		if ssmPath == "" {
			continue
		}
		bindings = append(bindings, ssmBinding{targetEnvVar: targetEnvVar, ssmPath: ssmPath})
		ssmPathToTarget[ssmPath] = targetEnvVar
	}

	if len(bindings) == 0 {
		return nil
	}

	if source == nil {
		targetVars := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targetVars = append(targetVars, b.targetEnvVar)
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("ParameterSource is required for non-local environments (need to resolve: %s)", strings.Join(targetVars, ", ")),
		}
	}

	ssmPaths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ssmPaths = append(ssmPaths, b.ssmPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := source.GetParametersBatch(ctx, ssmPaths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(ssmPaths)),
			Err:     err,
		}
	}

	for ssmPath, value := range resolved {
		targetEnvVar, ok := ssmPathToTarget[ssmPath]
		if !ok {
			continue
		}
		if err := deps.setEnv(targetEnvVar, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", targetEnvVar),
				Err:     err,
			}
		}
	}

	var missing []string
	for _, b := range bindings {
		if _, ok := resolved[b.ssmPath]; !ok {
			missing = append(missing, b.targetEnvVar)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
