// Package log provides protocol-level event logging for the Altitude
// client.
//
// Events capture every protocol line sent or received, connection state
// transitions and errors, tagged with a connection ID for correlation. The
// Logger interface decouples capture from storage: FileLogger writes a
// compact CBOR stream suitable for offline analysis (see cmd/altitude-log),
// SlogAdapter mirrors events to a standard slog.Logger for development, and
// MultiLogger fans out to several sinks at once.
//
// Logging must never disrupt the client: implementations swallow their own
// errors, and NoopLogger disables capture entirely.
package log
