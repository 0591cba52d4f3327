package transport

import (
	"context"
	"time"
)

// Transport is a line-oriented bidirectional connection to an Altitude
// processor. Implemented by TCPTransport; tests substitute their own.
//
// ReadLine is called only from the client's read goroutine. SendLine may be
// called from any goroutine; implementations must not interleave partial
// lines from concurrent writers.
type Transport interface {
	// Connect establishes the connection. The context bounds the dial.
	Connect(ctx context.Context) error

	// Connected reports whether the transport currently has a connection.
	Connected() bool

	// ReadLine reads one newline-terminated line, without the terminator.
	// A zero timeout means no deadline. Returns ErrConnectionClosed when
	// the peer closed the connection.
	ReadLine(timeout time.Duration) (string, error)

	// SendLine writes one line, appending the newline terminator if absent.
	// A zero timeout means no deadline.
	SendLine(line string, timeout time.Duration) error

	// Close tears the connection down. Safe to call multiple times.
	Close() error
}

// Factory creates a fresh Transport for each connection attempt.
type Factory func() Transport

// Compile-time interface satisfaction check.
var _ Transport = (*TCPTransport)(nil)
