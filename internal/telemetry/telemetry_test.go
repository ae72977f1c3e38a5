package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgate/internal/secrets"
	"eventgate/internal/types"
)

type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type recordingLogger struct {
	types.NopLogger
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func dims(d []cwtypes.Dimension) map[string]string {
	out := make(map[string]string, len(d))
	for _, x := range d {
		out[aws.ToString(x.Name)] = aws.ToString(x.Value)
	}
	return out
}

func TestCloudWatchRecorder_SecretResolution(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "", nil)

	r.RecordSecretResolution(context.Background(), "sms-provider", secrets.OutcomeMissing)

	require.Len(t, cw.calls, 1)
	assert.Equal(t, DefaultNamespace, aws.ToString(cw.calls[0].Namespace))
	datum := cw.calls[0].MetricData[0]
	assert.Equal(t, MetricSecretResolution, aws.ToString(datum.MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(datum.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, datum.Unit)
	assert.Equal(t, map[string]string{"Source": "sms-provider", "Outcome": "missing"}, dims(datum.Dimensions))
}

func TestCloudWatchRecorder_Dispatch(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "Custom", nil)

	r.RecordDispatch(context.Background(), "webhook", DispatchQueued, 1500*time.Millisecond)

	require.Len(t, cw.calls, 1)
	assert.Equal(t, "Custom", aws.ToString(cw.calls[0].Namespace))
	require.Len(t, cw.calls[0].MetricData, 2)
	assert.Equal(t, map[string]string{"Component": "webhook", "Result": "queued"}, dims(cw.calls[0].MetricData[0].Dimensions))
	latency := cw.calls[0].MetricData[1]
	assert.Equal(t, MetricDispatchLatency, aws.ToString(latency.MetricName))
	assert.Equal(t, 1500.0, aws.ToFloat64(latency.Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, latency.Unit)
}

func TestCloudWatchRecorder_Request(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "", nil)

	r.RecordRequest("POST", "/timers/{name}/fire", "404", 12*time.Millisecond)

	require.Len(t, cw.calls, 1)
	require.Len(t, cw.calls[0].MetricData, 2)
	assert.Equal(t, MetricGatewayRequest, aws.ToString(cw.calls[0].MetricData[0].MetricName))
	assert.Equal(t, map[string]string{"Route": "POST /timers/{name}/fire", "Status": "404"}, dims(cw.calls[0].MetricData[0].Dimensions))
	assert.Equal(t, 12.0, aws.ToFloat64(cw.calls[0].MetricData[1].Value))
}

func TestCloudWatchRecorder_ErrorsAreLogged(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	logger := &recordingLogger{}
	r := NewCloudWatchRecorder(cw, "", logger)

	r.RecordEnvelope(context.Background(), "timer-provider")

	assert.Equal(t, []string{"failed to record metric"}, logger.errors)
}

func TestRecorderFeedsInstrumentedProvider(t *testing.T) {
	cw := &mockCloudWatchClient{}
	p := secrets.NewInstrumented(secrets.NewStaticProviderFromStrings(map[string]string{"K": "v"}), "webhook-gateway",
		NewCloudWatchRecorder(cw, "", nil))

	_, found, err := p.GetSecret(context.Background(), "K")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, cw.calls, 1)
	assert.Equal(t, "found", dims(cw.calls[0].MetricData[0].Dimensions)["Outcome"])
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.RecordEnvelope(context.Background(), "x")
	r.RecordDispatch(context.Background(), "x", DispatchPublished, time.Second)
	r.RecordSecretResolution(context.Background(), "x", "found")
	NoopRecorder{}.RecordRequest("GET", "/health", "200", time.Millisecond)
}
