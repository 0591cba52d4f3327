// Package transport provides the Altitude transport layer implementation.
//
// The transport layer handles:
//   - Plain TCP connections to the processor's automation port (44100)
//   - Newline-terminated ASCII line framing
//   - Read/write deadlines
//   - Connection teardown
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      ASCII command lines       │
//	├────────────────────────────────┤
//	│    Newline framing ("\n")      │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// The Altitude automation protocol is unauthenticated plaintext; anything
// that can reach the port can control the processor. Deployments are
// expected to keep it on a trusted network segment.
//
// # Liveness
//
// The protocol has no ping. The client relies on bounded read deadlines:
// a read that times out simply resumes (broadcasts are irregular), while a
// closed or reset connection surfaces ErrConnectionClosed and drives the
// reconnect machinery.
package transport
