package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"eventgate/internal/transport"
	"eventgate/internal/types"
)

// maxDelaySeconds is the SQS DelaySeconds ceiling.
const maxDelaySeconds = 900

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends one message per envelope with topic, tenant and type
// message attributes so consumers can filter without decoding the body.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewSQSPublisher targets queueURL.
func NewSQSPublisher(client SQSSender, queueURL string, logger types.Logger) *SQSPublisher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

// Publish implements Publisher.
func (p *SQSPublisher) Publish(ctx context.Context, envs ...types.EventEnvelope) error {
	for _, env := range envs {
		body, err := encode(env)
		if err != nil {
			return err
		}
		_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
			MessageAttributes: map[string]sqstypes.MessageAttributeValue{
				AttrTopic:  stringAttr(env.Topic),
				AttrTenant: stringAttr(env.Tenant.String()),
				AttrType:   stringAttr(env.Type),
			},
		})
		if err != nil {
			return types.NewAppErrorWithDetails(types.ErrCodeTransportSend, "sqs send failed", err,
				map[string]any{"queue_url": p.queueURL, "event_id": env.ID})
		}
		p.logger.Info("envelope published",
			"event_id", env.ID,
			"topic", env.Topic,
			"tenant", env.Tenant.String(),
		)
	}
	return nil
}

// RetryRecord is a parked outbound request. Credentials are carried by
// reference only: Request headers are redacted and AuthRef names the secret
// the retry worker must resolve again.
type RetryRecord struct {
	ReceiptID string            `json:"receipt_id"`
	Component string            `json:"component"`
	Request   transport.Request `json:"request"`
	AuthRef   string            `json:"auth_ref,omitempty"`
	Attempt   int               `json:"attempt"`
	Reason    string            `json:"reason,omitempty"`
	QueuedAt  time.Time         `json:"queued_at"`
}

// Requeuer parks undispatched requests for a later attempt.
type Requeuer interface {
	Requeue(ctx context.Context, rec RetryRecord, delay time.Duration) error
}

// SQSRequeuer parks retry records on an SQS queue.
type SQSRequeuer struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
	clock    types.Clock
}

// NewSQSRequeuer targets queueURL.
func NewSQSRequeuer(client SQSSender, queueURL string, logger types.Logger) *SQSRequeuer {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &SQSRequeuer{client: client, queueURL: queueURL, logger: logger, clock: types.RealClock{}}
}

// Requeue increments rec.Attempt before serializing it, so the consumer sees
// the attempt number it is about to make. Delay is clamped to the SQS limit.
func (q *SQSRequeuer) Requeue(ctx context.Context, rec RetryRecord, delay time.Duration) error {
	rec.Attempt++
	if rec.QueuedAt.IsZero() {
		rec.QueuedAt = q.clock.Now()
	}
	rec.Request.Headers = types.RedactHeaders(rec.Request.Headers)

	body, err := json.Marshal(rec)
	if err != nil {
		return types.NewAppError(types.ErrCodeOtherSerialization, "encode retry record", err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > maxDelaySeconds {
		delaySec = maxDelaySeconds
	}
	if delaySec < 0 {
		delaySec = 0
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(q.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"component": stringAttr(rec.Component),
		},
	})
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeTransportSend, "sqs requeue failed", err,
			map[string]any{"queue_url": q.queueURL, "receipt_id": rec.ReceiptID})
	}

	q.logger.Info("request parked for retry",
		"receipt_id", rec.ReceiptID,
		"component", rec.Component,
		"attempt", rec.Attempt,
		"delay_seconds", delaySec,
	)
	return nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

var (
	_ Publisher = (*SQSPublisher)(nil)
	_ Requeuer  = (*SQSRequeuer)(nil)
)
