package connection

// State is the client connection lifecycle state.
//
// The happy path is Disconnected -> Connecting -> Connected -> Syncing ->
// Synced. Transport loss from any connected state moves to Reconnecting,
// which loops back through Connecting. Stop from anywhere lands on
// Disconnected.
type State uint8

const (
	// StateDisconnected indicates no active connection and no retry planned.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates the transport is up; bootstrap not yet done.
	StateConnected

	// StateSyncing indicates the bootstrap request was sent and milestone
	// messages are being collected.
	StateSyncing

	// StateSynced indicates all bootstrap milestones have been observed.
	StateSynced

	// StateReconnecting indicates the connection was lost and automatic
	// reconnection is in progress.
	StateReconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateSyncing:
		return "SYNCING"
	case StateSynced:
		return "SYNCED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Live reports whether the state has an established transport.
func (s State) Live() bool {
	switch s {
	case StateConnected, StateSyncing, StateSynced:
		return true
	default:
		return false
	}
}
