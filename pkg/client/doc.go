// Package client implements the long-running Altitude processor client.
//
// A Client owns one connection at a time. It dials the processor, announces
// itself, requests the full current state and then consumes the broadcast
// stream from a single read goroutine. All device state flows through the
// normalizer and reducer; callers observe it via Snapshot and callbacks.
//
// The client reconnects automatically with capped exponential backoff and
// rebuilds its state from scratch on every new connection, so a Snapshot
// never mixes observations from two sessions.
package client
