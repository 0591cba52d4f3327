// Package protocol implements the line-oriented Trinnov Altitude automation
// protocol parser.
//
// The Altitude exposes a newline-terminated ASCII protocol on TCP port 44100.
// Connected clients send commands ("volume -32.5", "get_current_state") and
// the processor broadcasts state-change messages to every client, so an
// integration can track device state without polling.
//
// Parse converts one received line into exactly one Message. Parsing is
// total: a line that matches no known shape yields an UnknownMessage
// carrying the raw text, never an error. Semantic interpretation of messages
// (quirk handling, precedence) belongs to package normalize; this package
// only preserves what was on the wire, including the distinction between the
// different shapes that report the current source (CURRENT_PROFILE,
// index-only PROFILE, OPTSOURCE).
package protocol
