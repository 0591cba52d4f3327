package client

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// and none is established.
	ErrNotConnected = errors.New("not connected to processor")

	// ErrAlreadyStarted is returned by Start on a running client.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrStopped is the cancellation outcome: the client was stopped while
	// an operation was waiting. Distinct from a timeout.
	ErrStopped = errors.New("client stopped")

	// ErrAckTimeout is returned when no acknowledgement arrived within the
	// configured window.
	ErrAckTimeout = errors.New("acknowledgement timeout")

	// ErrSyncTimeout is returned when WaitSynced's deadline expired before
	// all bootstrap milestones were observed.
	ErrSyncTimeout = errors.New("sync timeout")

	// ErrUnknownCatalogName is returned by lookups of a catalog name that
	// does not exist.
	ErrUnknownCatalogName = errors.New("unknown catalog name")
)

// CommandRejectedError is returned when the processor answered a command
// with an explicit negative acknowledgement.
type CommandRejectedError struct {
	// Command is the rejected command line.
	Command string

	// Reason is the device-provided rejection text, if any.
	Reason string
}

// Error implements the error interface.
func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reason)
}
