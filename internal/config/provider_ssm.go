package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmMaxBatchSize is the SSM GetParameters per-request limit.
const ssmMaxBatchSize = 10

// ssmClient is the subset of the SSM SDK client used by SSMParameterSource.
type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMParameterSource implements ParameterSource against AWS Systems Manager
// Parameter Store, decrypting SecureString parameters in batches of ten.
type SSMParameterSource struct {
	region string
	client ssmClient
}

// NewSSMParameterSource creates a source for region. The SDK client is built
// on first use.
func NewSSMParameterSource(region string) *SSMParameterSource {
	return &SSMParameterSource{region: region}
}

func newSSMParameterSourceWithClient(region string, client ssmClient) *SSMParameterSource {
	return &SSMParameterSource{region: region, client: client}
}

func (p *SSMParameterSource) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
	}
	p.client = ssm.NewFromConfig(cfg)
	return nil
}

// GetParametersBatch fetches keys with decryption. Context cancellation is
// checked between batches; any parameter SSM reports as invalid fails the
// whole call.
func (p *SSMParameterSource) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return make(map[string]string), nil
	}
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(keys))
	for i := 0; i < len(keys); i += ssmMaxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during SSM parameter retrieval: %w", err)
		}

		end := min(i+ssmMaxBatchSize, len(keys))
		output, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          keys[i:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters failed (batch %d-%d of %d): %w", i, end-1, len(keys), err)
		}
		for _, param := range output.Parameters {
			if param.Name != nil && param.Value != nil {
				result[*param.Name] = *param.Value
			}
		}
		if len(output.InvalidParameters) > 0 {
			return nil, fmt.Errorf("SSM parameters not found: %v", output.InvalidParameters)
		}
	}
	return result, nil
}
