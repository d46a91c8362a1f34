package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const (
	Topic           = "product-events"
	DeadLetterTopic = "product-events-dlq"
	GroupID         = "cart-service"

	failureReasonHeader = "X-Failure-Reason"
)

// Reader is the subset of kafka.Reader the consumer needs. Fetch and commit
// are split so a message is acknowledged only after its handler succeeds.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterWriter receives messages that must never be retried.
type DeadLetterWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Handler processes one decoded envelope. A returned error is classified as
// permanent (dead-letter) or transient (redelivery) by the consumer.
type Handler func(ctx context.Context, env events.Envelope) error

type Consumer struct {
	reader       Reader
	deadLetters  DeadLetterWriter
	handlers     map[string]Handler
	timeout      time.Duration
	fetchBackoff time.Duration
	logger       *zap.Logger
}

func NewConsumer(reader Reader, deadLetters DeadLetterWriter, timeout time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:       reader,
		deadLetters:  deadLetters,
		handlers:     make(map[string]Handler),
		timeout:      timeout,
		fetchBackoff: time.Second,
		logger:       logger,
	}
}

// NewReader builds the kafka reader for the product-events topic. Partitions
// are keyed by product ID on the producer side, so a single sequential reader
// per partition preserves per-product delivery order.
func NewReader(brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewDeadLetterWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  DeadLetterTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// Register binds an event type to its handler. Registration happens once at
// startup; no reflection, no annotations.
func (c *Consumer) Register(eventType string, handler Handler) {
	c.handlers[eventType] = handler
}

// Run fetches and processes messages until ctx is cancelled. Messages are
// handled strictly one at a time: introducing per-message goroutines here
// could reorder two updates for the same product.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("error fetching message", zap.Error(err))
			// A broker outage would otherwise turn this loop into a hot
			// log spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		if ack := c.process(ctx, msg); ack {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("error committing message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", zap.Error(err))
	}
}

// process handles one delivery and reports whether it may be acknowledged.
// Permanent failures are dead-lettered and acknowledged so they never block
// the partition; transient failures leave the message uncommitted for
// broker-level redelivery.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := events.ContextFromHeaders(ctx, msg.Headers)
	msgCtx = extractTraceContext(msgCtx, msg.Headers)
	msgCtx, cancel := context.WithTimeout(msgCtx, c.timeout)
	defer cancel()

	env, err := events.Decode(msg.Value)
	if err != nil {
		c.logger.Error("undecodable message, dead-lettering",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return c.deadLetter(msgCtx, msg, err)
	}

	handler, ok := c.handlers[env.EventType]
	if !ok {
		err := &events.UnknownEventTypeError{EventType: env.EventType}
		c.logger.Warn("no handler for event type, dead-lettering",
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID),
		)
		return c.deadLetter(msgCtx, msg, err)
	}

	if err := handler(msgCtx, env); err != nil {
		if isPermanent(err) {
			c.logger.Error("permanent handler failure, dead-lettering",
				zap.String("event_type", env.EventType),
				zap.String("event_id", env.EventID),
				zap.String("correlation_id", events.CorrelationID(msgCtx)),
				zap.Error(err),
			)
			return c.deadLetter(msgCtx, msg, err)
		}

		// Transient: not acknowledged, eligible for redelivery. The handler
		// is idempotent, so a second delivery is safe.
		c.logger.Warn("transient handler failure, leaving message for redelivery",
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID),
			zap.String("correlation_id", events.CorrelationID(msgCtx)),
			zap.Error(err),
		)
		return false
	}

	return true
}

// deadLetter routes a poison message to the error sink. When the sink itself
// is unreachable the message stays uncommitted rather than being dropped.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) bool {
	headers := append(msg.Headers, kafka.Header{
		Key:   failureReasonHeader,
		Value: []byte(cause.Error()),
	})

	err := c.deadLetters.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		c.logger.Error("failed to write to dead-letter topic", zap.Error(err))
		return false
	}
	return true
}

// isPermanent reports whether err can never succeed on retry. Everything
// else, store outages included, defers to broker redelivery.
func isPermanent(err error) bool {
	var malformed *events.MalformedEventError
	var unknown *events.UnknownEventTypeError
	var invalid *events.ValidationError
	return errors.As(err, &malformed) || errors.As(err, &unknown) || errors.As(err, &invalid)
}

// extractTraceContext connects spans across the producer/consumer boundary.
func extractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	propagator := otel.GetTextMapPropagator()
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[header.Key] = string(header.Value)
	}
	return propagator.Extract(ctx, carrier)
}
