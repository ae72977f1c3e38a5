package sink

import (
	"context"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"eventgate/internal/types"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a synchronous writer that hashes on the message key,
// so every delivery of one envelope lands on the same partition. When topic
// is empty each message names its own topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: topic == "",
	}
}

// KafkaPublisher writes envelopes keyed by envelope id.
type KafkaPublisher struct {
	writer   MessageWriter
	perTopic bool
	logger   types.Logger
}

// NewKafkaPublisher wraps w. With perTopic set every message is written to
// the envelope's own topic; w must then have no fixed topic.
func NewKafkaPublisher(w MessageWriter, perTopic bool, logger types.Logger) *KafkaPublisher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &KafkaPublisher{writer: w, perTopic: perTopic, logger: logger}
}

// Publish implements Publisher. All envelopes go out in one write.
func (p *KafkaPublisher) Publish(ctx context.Context, envs ...types.EventEnvelope) error {
	if len(envs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(envs))
	for _, env := range envs {
		body, err := encode(env)
		if err != nil {
			return err
		}
		msg := kafka.Message{
			Key:   []byte(env.ID),
			Value: body,
			Time:  env.Time,
			Headers: []kafka.Header{
				{Key: AttrTopic, Value: []byte(env.Topic)},
				{Key: AttrTenant, Value: []byte(env.Tenant.String())},
				{Key: AttrType, Value: []byte(env.Type)},
			},
		}
		if p.perTopic {
			msg.Topic = env.Topic
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeTransportSend, "kafka write failed", err,
			map[string]any{"count": len(msgs)})
	}
	p.logger.Info("envelopes published", "count", len(msgs), "first_event_id", envs[0].ID)
	return nil
}

// Close flushes and closes the writer when it supports closing.
func (p *KafkaPublisher) Close() error {
	if c, ok := p.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Publisher = (*KafkaPublisher)(nil)
