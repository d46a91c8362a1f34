package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeadLetterWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	writeErr error
}

func (f *fakeDeadLetterWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeDeadLetterWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

// fakeReader serves a fixed batch and then blocks until cancellation.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, context.Canceled
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

// flakyReader fails the first few fetches before serving its batch.
type flakyReader struct {
	fakeReader
	mu       sync.Mutex
	failures int
	fetches  int
}

func (f *flakyReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	f.fetches++
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return kafka.Message{}, errors.New("broker unreachable")
	}
	f.mu.Unlock()
	return f.fakeReader.FetchMessage(ctx)
}

func newTestConsumer(dlq *fakeDeadLetterWriter) *Consumer {
	return NewConsumer(&fakeReader{}, dlq, time.Second, zap.NewNop())
}

func envelopeMessage(t *testing.T, env events.Envelope) kafka.Message {
	t.Helper()
	value, err := env.Encode()
	require.NoError(t, err)
	return kafka.Message{
		Key:     []byte(env.AggregateID),
		Value:   value,
		Headers: []kafka.Header{{Key: "X-Correlation-ID", Value: []byte(env.CorrelationID)}},
	}
}

func productUpdatedMessage(t *testing.T) kafka.Message {
	t.Helper()
	env, err := events.NewProductUpdated(context.Background(), "catalog-service", 42, events.ProductUpdatedPayload{
		Name:   "Widget",
		Price:  9.99,
		Active: true,
	})
	require.NoError(t, err)
	return envelopeMessage(t, env)
}

func TestProcess_SuccessAcknowledges(t *testing.T) {
	dlq := &fakeDeadLetterWriter{}
	c := newTestConsumer(dlq)

	var handled events.Envelope
	c.Register(events.TypeProductUpdated, func(_ context.Context, env events.Envelope) error {
		handled = env
		return nil
	})

	ack := c.process(context.Background(), productUpdatedMessage(t))

	assert.True(t, ack)
	assert.Equal(t, events.TypeProductUpdated, handled.EventType)
	assert.Equal(t, 0, dlq.count())
}

func TestProcess_RestoresCorrelationFromHeaders(t *testing.T) {
	c := newTestConsumer(&fakeDeadLetterWriter{})

	var got string
	c.Register(events.TypeProductUpdated, func(ctx context.Context, _ events.Envelope) error {
		got = events.CorrelationID(ctx)
		return nil
	})

	msg := productUpdatedMessage(t)
	msg.Headers = []kafka.Header{{Key: "X-Correlation-ID", Value: []byte("corr-from-producer")}}

	require.True(t, c.process(context.Background(), msg))
	assert.Equal(t, "corr-from-producer", got)
}

func TestProcess_GeneratesCorrelationWhenHeaderMissing(t *testing.T) {
	c := newTestConsumer(&fakeDeadLetterWriter{})

	var got string
	c.Register(events.TypeProductUpdated, func(ctx context.Context, _ events.Envelope) error {
		got = events.CorrelationID(ctx)
		return nil
	})

	msg := productUpdatedMessage(t)
	msg.Headers = nil

	require.True(t, c.process(context.Background(), msg))
	assert.NotEmpty(t, got)
}

func TestProcess_UndecodableMessageDeadLettersAndAcks(t *testing.T) {
	dlq := &fakeDeadLetterWriter{}
	c := newTestConsumer(dlq)

	ack := c.process(context.Background(), kafka.Message{Value: []byte("not json at all")})

	assert.True(t, ack, "poison messages must not block the partition")
	require.Equal(t, 1, dlq.count())

	var reason string
	for _, h := range dlq.written[0].Headers {
		if h.Key == "X-Failure-Reason" {
			reason = string(h.Value)
		}
	}
	assert.NotEmpty(t, reason)
	assert.Equal(t, []byte("not json at all"), dlq.written[0].Value, "original payload travels with the dead letter")
}

func TestProcess_UnknownEventTypeDeadLettersAndAcks(t *testing.T) {
	dlq := &fakeDeadLetterWriter{}
	c := newTestConsumer(dlq)
	// Only ProductUpdated is registered.
	c.Register(events.TypeProductUpdated, func(context.Context, events.Envelope) error { return nil })

	raw, err := json.Marshal(map[string]any{
		"eventId":     "e-1",
		"eventType":   "ProductArchived",
		"aggregateId": "42",
	})
	require.NoError(t, err)

	ack := c.process(context.Background(), kafka.Message{Value: raw})

	assert.True(t, ack)
	assert.Equal(t, 1, dlq.count())
}

func TestProcess_TransientFailureLeavesMessageUncommitted(t *testing.T) {
	dlq := &fakeDeadLetterWriter{}
	c := newTestConsumer(dlq)
	c.Register(events.TypeProductUpdated, func(context.Context, events.Envelope) error {
		return errors.New("mongo: connection refused")
	})

	ack := c.process(context.Background(), productUpdatedMessage(t))

	assert.False(t, ack, "transient failures rely on broker redelivery")
	assert.Equal(t, 0, dlq.count())
}

func TestProcess_PermanentFailureDeadLettersAndAcks(t *testing.T) {
	dlq := &fakeDeadLetterWriter{}
	c := newTestConsumer(dlq)
	c.Register(events.TypeProductUpdated, func(context.Context, events.Envelope) error {
		return &events.MalformedEventError{Reason: "payload missing required field"}
	})

	ack := c.process(context.Background(), productUpdatedMessage(t))

	assert.True(t, ack)
	assert.Equal(t, 1, dlq.count())
}

func TestProcess_DeadLetterWriteFailureDoesNotAck(t *testing.T) {
	dlq := &fakeDeadLetterWriter{writeErr: errors.New("dlq broker unreachable")}
	c := newTestConsumer(dlq)

	ack := c.process(context.Background(), kafka.Message{Value: []byte("garbage")})

	assert.False(t, ack, "a message may only be dropped once it is parked in the dead-letter topic")
}

func TestRun_RecoversFromFetchErrorsWithBackoff(t *testing.T) {
	reader := &flakyReader{failures: 3}
	reader.fakeReader.msgs = []kafka.Message{productUpdatedMessage(t)}

	c := NewConsumer(reader, &fakeDeadLetterWriter{}, time.Second, zap.NewNop())
	c.fetchBackoff = time.Millisecond
	c.Register(events.TypeProductUpdated, func(context.Context, events.Envelope) error { return nil })

	start := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		reader.fakeReader.mu.Lock()
		defer reader.fakeReader.mu.Unlock()
		return len(reader.fakeReader.committed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.GreaterOrEqual(t, reader.fetches, 4, "fetch is retried after transient broker errors")
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond, "each failed fetch waits before retrying")
}

func TestRun_CommitsOnlyAcknowledgedMessages(t *testing.T) {
	good := productUpdatedMessage(t)

	env, err := events.NewProductUpdated(context.Background(), "catalog-service", 7, events.ProductUpdatedPayload{
		Name:   "Gadget",
		Price:  24.00,
		Active: true,
	})
	require.NoError(t, err)
	failing := envelopeMessage(t, env)

	reader := &fakeReader{msgs: []kafka.Message{good, failing}}
	c := NewConsumer(reader, &fakeDeadLetterWriter{}, time.Second, zap.NewNop())
	c.Register(events.TypeProductUpdated, func(_ context.Context, env events.Envelope) error {
		id, err := env.ProductID()
		if err != nil {
			return err
		}
		if id == 7 {
			return errors.New("store unavailable")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.msgs) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	require.Len(t, reader.committed, 1)
	assert.Equal(t, good.Value, reader.committed[0].Value)
}
