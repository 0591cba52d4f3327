package log

import "time"

// Event represents a protocol log event captured by the client.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// RemoteAddr is the processor address (host:port).
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// DeviceID is the processor identifier from the welcome banner.
	DeviceID string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"7,keyasint,omitempty"`  // Protocol lines
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`  // Connection state
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"`  // Errors
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a line received from the processor.
	DirectionIn Direction = 0
	// DirectionOut indicates a command sent to the processor.
	DirectionOut Direction = 1
	// DirectionLocal indicates a client-internal event.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLine indicates a protocol line (command or broadcast).
	CategoryLine Category = 0
	// CategoryState indicates a connection state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLine:
		return "LINE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LineEvent captures one protocol line.
type LineEvent struct {
	// Text is the line as it appeared on the wire, terminator stripped.
	Text string `cbor:"1,keyasint"`

	// Kind is the parsed message tag ("VOLUME", "UNKNOWN", ...). Empty for
	// outgoing commands, which are not parsed.
	Kind string `cbor:"2,keyasint,omitempty"`
}

// StateChangeEvent captures a connection state transition.
type StateChangeEvent struct {
	// OldState is the state before the transition.
	OldState string `cbor:"1,keyasint"`

	// NewState is the state after the transition.
	NewState string `cbor:"2,keyasint"`

	// Reason describes what triggered the transition, if known.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes what the client was doing.
	Context string `cbor:"2,keyasint,omitempty"`
}
