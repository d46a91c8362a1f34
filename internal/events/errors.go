package events

import "fmt"

// ValidationError indicates an event could not be constructed because a
// required field for its type is missing or invalid. Permanent.
type ValidationError struct {
	EventType string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s event: %s %s", e.EventType, e.Field, e.Reason)
}

// MalformedEventError indicates a message on the wire could not be decoded.
// Permanent: the message is dead-lettered, never retried.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed event: %s", e.Reason)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// UnknownEventTypeError indicates a decodable envelope whose eventType has no
// registered handler. Permanent: dead-lettered to avoid blocking the partition.
type UnknownEventTypeError struct {
	EventType string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.EventType)
}
