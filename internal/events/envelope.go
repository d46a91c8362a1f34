package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the product-events topic.
const (
	TypeProductUpdated = "ProductUpdated"
	TypeProductDeleted = "ProductDeleted"
)

const (
	AggregateTypeProduct = "Product"

	// SchemaVersion is the envelope payload version. Bump on any breaking
	// change to a payload's field set.
	SchemaVersion = 1
)

// Envelope is the versioned wire format wrapping a domain event's payload
// plus routing and tracing metadata. Field names are the cross-service
// contract; consumers decode independently of the producer.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	Source        string          `json:"source"`
	OccurredAt    time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ProductUpdatedPayload is the ProductUpdated field set. Price is required.
type ProductUpdatedPayload struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	StockQuantity int     `json:"stockQuantity"`
	Category      string  `json:"category"`
	ImageURL      string  `json:"imageUrl"`
	Active        bool    `json:"active"`
}

// ProductDeletedPayload is the ProductDeleted field set.
type ProductDeletedPayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// NewProductUpdated builds a ProductUpdated envelope for the given product.
// The correlation ID is taken from ctx, generated when absent; the causation
// ID is carried through as-is.
func NewProductUpdated(ctx context.Context, source string, productID int64, p ProductUpdatedPayload) (Envelope, error) {
	if p.Name == "" {
		return Envelope{}, &ValidationError{EventType: TypeProductUpdated, Field: "name", Reason: "is required"}
	}
	if p.Price <= 0 {
		return Envelope{}, &ValidationError{EventType: TypeProductUpdated, Field: "price", Reason: "must be positive"}
	}
	return newEnvelope(ctx, TypeProductUpdated, source, productID, p)
}

// NewProductDeleted builds a ProductDeleted envelope for the given product.
func NewProductDeleted(ctx context.Context, source string, productID int64, p ProductDeletedPayload) (Envelope, error) {
	return newEnvelope(ctx, TypeProductDeleted, source, productID, p)
}

func newEnvelope(ctx context.Context, eventType, source string, productID int64, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, &ValidationError{EventType: eventType, Field: "payload", Reason: "is not serializable"}
	}
	_, correlationID := EnsureCorrelation(ctx)
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   strconv.FormatInt(productID, 10),
		AggregateType: AggregateTypeProduct,
		Source:        source,
		OccurredAt:    time.Now().UTC(),
		Version:       SchemaVersion,
		CorrelationID: correlationID,
		CausationID:   CausationID(ctx),
		Payload:       data,
	}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ProductID parses the envelope's aggregate ID as a product ID.
func (e Envelope) ProductID() (int64, error) {
	id, err := strconv.ParseInt(e.AggregateID, 10, 64)
	if err != nil {
		return 0, &MalformedEventError{Reason: "aggregateId is not a product id", Err: err}
	}
	return id, nil
}

// ProductUpdated decodes the payload of a ProductUpdated envelope.
func (e Envelope) ProductUpdated() (ProductUpdatedPayload, error) {
	var p ProductUpdatedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ProductUpdatedPayload{}, &MalformedEventError{Reason: "undecodable ProductUpdated payload", Err: err}
	}
	return p, nil
}

// ProductDeleted decodes the payload of a ProductDeleted envelope.
func (e Envelope) ProductDeleted() (ProductDeletedPayload, error) {
	var p ProductDeletedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ProductDeletedPayload{}, &MalformedEventError{Reason: "undecodable ProductDeleted payload", Err: err}
	}
	return p, nil
}

// Decode parses an envelope off the wire. Undecodable bytes or a structurally
// incomplete envelope are malformed, not retryable.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, &MalformedEventError{Reason: "undecodable envelope", Err: err}
	}
	if e.EventID == "" {
		return Envelope{}, &MalformedEventError{Reason: "missing eventId"}
	}
	if e.EventType == "" {
		return Envelope{}, &MalformedEventError{Reason: "missing eventType"}
	}
	if e.AggregateID == "" {
		return Envelope{}, &MalformedEventError{Reason: "missing aggregateId"}
	}
	return e, nil
}
