// Package bridge adapts the client for integration platforms.
//
// It converts adapter output into flat coordinator payloads and event bus
// messages, and parses textual automation commands into validated client
// calls. The payload keys and event type names are part of the integration
// contract and must stay stable.
package bridge
