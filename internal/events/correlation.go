package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Transport header names for correlation propagation. Consumers recover the
// context from these without inspecting the payload.
const (
	CorrelationIDHeader = "X-Correlation-ID"
	CausationIDHeader   = "X-Causation-ID"
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	causationIDKey
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationIDKey, id)
}

// CorrelationID returns the correlation ID carried by ctx, or "" when none is set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// CausationID returns the causation ID carried by ctx, or "" when none is set.
func CausationID(ctx context.Context) string {
	id, _ := ctx.Value(causationIDKey).(string)
	return id
}

// EnsureCorrelation returns ctx guaranteed to carry a correlation ID,
// generating a fresh one when absent.
func EnsureCorrelation(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}

// ContextFromHeaders restores the correlation context from Kafka message
// headers. A missing correlation ID yields a freshly generated one, so every
// unit of work downstream of a delivery has a usable context.
func ContextFromHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	var correlationID, causationID string
	for _, h := range headers {
		switch h.Key {
		case CorrelationIDHeader:
			correlationID = string(h.Value)
		case CausationIDHeader:
			causationID = string(h.Value)
		}
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = WithCorrelationID(ctx, correlationID)
	if causationID != "" {
		ctx = WithCausationID(ctx, causationID)
	}
	return ctx
}

// HeadersFromContext renders the correlation context as Kafka message headers.
func HeadersFromContext(ctx context.Context) []kafka.Header {
	var headers []kafka.Header
	if id := CorrelationID(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: CorrelationIDHeader, Value: []byte(id)})
	}
	if id := CausationID(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: CausationIDHeader, Value: []byte(id)})
	}
	return headers
}
