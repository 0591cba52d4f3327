// Package connection provides connection lifecycle primitives for the
// Altitude client.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Connection state tracking
//
// # Reconnection Strategy
//
// When a connection is lost, the client uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Continue at 30s until successful
//  5. Reset to 1s once the new connection reaches SYNCED
//
// # Jitter
//
// To prevent thundering herd when multiple clients reconnect:
//
//	actual_delay = base_delay + random(0, base_delay * 0.2)
//
// # Success Criteria
//
// Reaching CONNECTED does not reset backoff on its own; a connection that
// dies during bootstrap keeps escalating. The attempt counter resets only
// when the connection reaches SYNCED.
package connection
