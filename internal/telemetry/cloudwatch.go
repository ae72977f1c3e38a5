package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"eventgate/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder emits one PutMetricData call per observation.
//
// Metrics emitted:
//   - SecretResolution: Dims {Source, Outcome}
//   - EnvelopeEmitted: Dims {Source}
//   - DispatchAttempt: Dims {Component, Result}
//   - DispatchAttemptLatency: Dims {Component}, milliseconds
//   - GatewayRequest: Dims {Route, Status}
//   - GatewayLatency: Dims {Route}, milliseconds
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder publishes to namespace, or DefaultNamespace when empty.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &CloudWatchRecorder{client: client, namespace: namespace, logger: logger}
}

// RecordSecretResolution implements secrets.ResolutionRecorder.
func (r *CloudWatchRecorder) RecordSecretResolution(ctx context.Context, source, outcome string) {
	r.put(ctx, count(MetricSecretResolution, dim(DimSource, source), dim(DimOutcome, outcome)))
}

// RecordEnvelope counts an envelope handed to the caller or a sink.
func (r *CloudWatchRecorder) RecordEnvelope(ctx context.Context, source string) {
	r.put(ctx, count(MetricEnvelopeEmitted, dim(DimSource, source)))
}

// RecordDispatch counts an outbound attempt and records its latency.
func (r *CloudWatchRecorder) RecordDispatch(ctx context.Context, component string, result DispatchResult, latency time.Duration) {
	r.put(ctx,
		count(MetricDispatchAttempt, dim(DimComponent, component), dim(DimResult, string(result))),
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricDispatchLatency),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{dim(DimComponent, component)},
		},
	)
}

// RecordRequest records one gateway request. route is the chi route pattern,
// never the raw path, to keep dimension cardinality bounded.
func (r *CloudWatchRecorder) RecordRequest(method, route, status string, duration time.Duration) {
	endpoint := method + " " + route
	r.put(context.Background(),
		count(MetricGatewayRequest, dim(DimRoute, endpoint), dim(DimStatus, status)),
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricGatewayLatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{dim(DimRoute, endpoint)},
		},
	)
}

func (r *CloudWatchRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func count(name string, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
