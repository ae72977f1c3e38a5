package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"eventgate/internal/types"
)

// SSMClient is the subset of the SSM SDK client used by SSMProvider.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMProvider is the live secret store: keys map to SecureString parameters
// under a path prefix in AWS Systems Manager Parameter Store.
type SSMProvider struct {
	region     string
	pathPrefix string

	once    sync.Once
	initErr error
	client  SSMClient
}

// NewSSMProvider creates a provider for region. Parameter names are
// pathPrefix + "/" + key; the client is created on first use.
func NewSSMProvider(region, pathPrefix string) *SSMProvider {
	return &SSMProvider{region: region, pathPrefix: strings.TrimRight(pathPrefix, "/")}
}

// NewSSMProviderWithClient injects an SSM client (tests, shared AWS config).
func NewSSMProviderWithClient(client SSMClient, pathPrefix string) *SSMProvider {
	p := &SSMProvider{pathPrefix: strings.TrimRight(pathPrefix, "/"), client: client}
	p.once.Do(func() {})
	return p
}

func (p *SSMProvider) ensureClient(ctx context.Context) error {
	p.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
		if err != nil {
			p.initErr = fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
			return
		}
		p.client = ssm.NewFromConfig(cfg)
	})
	return p.initErr
}

// ParameterName returns the SSM parameter path for key.
func (p *SSMProvider) ParameterName(key string) string {
	return p.pathPrefix + "/" + strings.TrimLeft(key, "/")
}

// GetSecret implements Provider. ParameterNotFound is reported as absent;
// every other SSM failure is an Auth error.
func (p *SSMProvider) GetSecret(ctx context.Context, key string) ([]byte, bool, error) {
	if err := p.ensureClient(ctx); err != nil {
		return nil, false, types.NewAppError(types.ErrCodeAuthStoreUnavailable, "secret store client unavailable", err)
	}

	name := p.ParameterName(key)
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, types.NewAppErrorWithDetails(types.ErrCodeAuthSecretStore,
			"secrets-store error", err, map[string]any{"key": key})
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, false, nil
	}
	return []byte(*out.Parameter.Value), true, nil
}

var _ Provider = (*SSMProvider)(nil)
