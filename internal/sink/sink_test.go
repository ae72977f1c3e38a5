package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgate/internal/transport"
	"eventgate/internal/types"
)

type mockSQS struct {
	inputs    []*sqs.SendMessageInput
	returnErr error
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type mockWriter struct {
	msgs      []kafka.Message
	returnErr error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.returnErr != nil {
		return m.returnErr
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func sampleEnvelope() types.EventEnvelope {
	tenant := types.MustTenantCtx("prod", "acme")
	return types.NewEvent("webhook.stripe.paid", "com.greentic.webhook.generic.v1", "webhook-gateway", tenant,
		"/stripe", "req-1", json.RawMessage(`{"a":1}`), nil)
}

func TestSQSPublisher_Publish(t *testing.T) {
	client := &mockSQS{}
	p := NewSQSPublisher(client, "https://sqs.test/events", nil)
	env := sampleEnvelope()

	require.NoError(t, p.Publish(context.Background(), env, sampleEnvelope()))
	require.Len(t, client.inputs, 2)

	in := client.inputs[0]
	assert.Equal(t, "https://sqs.test/events", aws.ToString(in.QueueUrl))
	assert.Equal(t, "webhook.stripe.paid", aws.ToString(in.MessageAttributes[AttrTopic].StringValue))
	assert.Equal(t, "prod/acme", aws.ToString(in.MessageAttributes[AttrTenant].StringValue))

	var decoded types.EventEnvelope
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &decoded))
	assert.Equal(t, env.ID, decoded.ID)
	assert.JSONEq(t, `{"a":1}`, string(decoded.Payload))
}

func TestSQSPublisher_Error(t *testing.T) {
	p := NewSQSPublisher(&mockSQS{returnErr: errors.New("boom")}, "q", nil)
	err := p.Publish(context.Background(), sampleEnvelope())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTransport))
}

func TestSQSRequeuer(t *testing.T) {
	client := &mockSQS{}
	q := NewSQSRequeuer(client, "https://sqs.test/retry", nil)
	q.clock = types.FixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	rec := RetryRecord{
		ReceiptID: "r-1",
		Component: "webhook",
		AuthRef:   "WEBHOOK_TOKEN",
		Request: transport.Request{
			Method:  "POST",
			URL:     "https://example.test/hook",
			Headers: map[string]string{"Authorization": "Bearer secret-token", "content-type": "application/json"},
		},
	}
	require.NoError(t, q.Requeue(context.Background(), rec, time.Hour))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, int32(900), in.DelaySeconds)

	var parked RetryRecord
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &parked))
	assert.Equal(t, 1, parked.Attempt)
	assert.Equal(t, "WEBHOOK_TOKEN", parked.AuthRef)
	assert.Equal(t, types.Redacted, parked.Request.Headers["Authorization"])
	assert.Equal(t, "application/json", parked.Request.Headers["content-type"])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), parked.QueuedAt)
	assert.NotContains(t, aws.ToString(in.MessageBody), "secret-token")

	assert.Equal(t, "Bearer secret-token", rec.Request.Headers["Authorization"], "caller's request is not mutated")

	require.NoError(t, q.Requeue(context.Background(), rec, -time.Second))
	assert.Equal(t, int32(0), client.inputs[1].DelaySeconds)
}

func TestKafkaPublisher(t *testing.T) {
	w := &mockWriter{}
	env := sampleEnvelope()

	require.NoError(t, NewKafkaPublisher(w, true, nil).Publish(context.Background(), env))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, env.ID, string(msg.Key))
	assert.Equal(t, "webhook.stripe.paid", msg.Topic)
	assert.Contains(t, msg.Headers, kafka.Header{Key: AttrTenant, Value: []byte("prod/acme")})

	w = &mockWriter{}
	require.NoError(t, NewKafkaPublisher(w, false, nil).Publish(context.Background(), env))
	assert.Empty(t, w.msgs[0].Topic)

	require.NoError(t, NewKafkaPublisher(w, false, nil).Publish(context.Background()))

	err := NewKafkaPublisher(&mockWriter{returnErr: errors.New("leader not available")}, false, nil).
		Publish(context.Background(), env)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTransport))

	assert.NoError(t, NewKafkaPublisher(w, false, nil).Close())
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "")
	assert.True(t, w.AllowAutoTopicCreation)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)

	w = NewKafkaWriter([]string{"localhost:9092"}, "events")
	assert.Equal(t, "events", w.Topic)
	assert.False(t, w.AllowAutoTopicCreation)
}

func TestRecordingAndLogPublisher(t *testing.T) {
	rec := &Recording{}
	require.NoError(t, rec.Publish(context.Background(), sampleEnvelope()))
	assert.Len(t, rec.Envelopes, 1)

	rec.Err = errors.New("down")
	assert.Error(t, rec.Publish(context.Background(), sampleEnvelope()))

	assert.NoError(t, NewLogPublisher(nil).Publish(context.Background(), sampleEnvelope()))
}
