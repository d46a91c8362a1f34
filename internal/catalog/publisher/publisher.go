package publisher

import (
	"context"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const Topic = "product-events"

// Writer is the slice of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands envelopes to the broker keyed by product ID, so all
// events for one product land on the same partition and arrive in order.
// Delivery is at-least-once; consumers are idempotent.
type KafkaPublisher struct {
	writer Writer
	logger *zap.Logger
}

func NewKafkaPublisher(logger *zap.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// NewKafkaPublisherWithWriter injects a prebuilt writer.
func NewKafkaPublisherWithWriter(w Writer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish enqueues one message per call. Correlation and causation IDs travel
// as transport headers so consumers restore context without touching the
// payload; the active trace context rides along the same way.
func (p *KafkaPublisher) Publish(ctx context.Context, env events.Envelope) error {
	value, err := env.Encode()
	if err != nil {
		return err
	}

	headers := events.HeadersFromContext(ctx)
	headers = append(headers, traceHeaders(ctx)...)

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(env.AggregateID),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		return err
	}

	p.logger.Info("event published",
		zap.String("topic", Topic),
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID),
		zap.String("aggregate_id", env.AggregateID),
		zap.String("correlation_id", env.CorrelationID),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
