package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altitude-protocol/altitude-go/pkg/canonical"
	"github.com/altitude-protocol/altitude-go/pkg/connection"
	"github.com/altitude-protocol/altitude-go/pkg/log"
	"github.com/altitude-protocol/altitude-go/pkg/normalize"
	"github.com/altitude-protocol/altitude-go/pkg/protocol"
	"github.com/altitude-protocol/altitude-go/pkg/quirks"
	"github.com/altitude-protocol/altitude-go/pkg/state"
	"github.com/altitude-protocol/altitude-go/pkg/transport"
)

// Default timeouts, matching the processor's observed behavior. The read
// timeout is generous because an idle processor is silent between changes.
const (
	DefaultClientID       = "altitude-go"
	DefaultConnectTimeout = 2 * time.Second
	DefaultCommandTimeout = 2 * time.Second
	DefaultAckTimeout     = 2 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// EventType identifies a client lifecycle or stream event.
type EventType uint8

const (
	// EventConnected fires after the transport connects, before sync.
	EventConnected EventType = iota

	// EventDisconnected fires when an established connection is lost or
	// the client is stopped.
	EventDisconnected

	// EventMessage fires for every line received from the processor,
	// including lines the client does not understand.
	EventMessage
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is delivered to registered callbacks.
type Event struct {
	Type EventType

	// Message is the parsed line for EventMessage, nil otherwise.
	Message protocol.Message
}

// Callback receives client events. Callbacks run on the read goroutine and
// should return quickly; panics are recovered and logged so one misbehaving
// callback cannot take the stream down.
type Callback func(Event)

// CallbackHandle identifies a registered callback for deregistration.
type CallbackHandle = uuid.UUID

// Config configures a Client. Host is required unless a TransportFactory is
// provided; all other fields fall back to package defaults.
type Config struct {
	// Host is the processor's address.
	Host string

	// Port is the processor's automation port. Defaults to 44100.
	Port int

	// ClientID is announced to the processor after connecting.
	ClientID string

	// ConnectTimeout bounds each dial attempt.
	ConnectTimeout time.Duration

	// CommandTimeout bounds each line write.
	CommandTimeout time.Duration

	// AckTimeout bounds the wait for an OK/ERROR answer in CommandAck.
	AckTimeout time.Duration

	// ReadTimeout bounds a single blocking read. On expiry the client
	// simply reads again; it is not treated as a connection failure.
	ReadTimeout time.Duration

	// DisableReconnect turns off automatic reconnection. The client then
	// transitions to DISCONNECTED on connection loss and stays there.
	DisableReconnect bool

	// Backoff customizes the reconnect backoff. Zero values use defaults.
	Backoff connection.BackoffConfig

	// TransportFactory creates the transport for each connection attempt.
	// Defaults to a TCP transport for Host:Port. Tests substitute fakes.
	TransportFactory transport.Factory

	// Logger receives diagnostic output. Defaults to a discard logger.
	Logger *slog.Logger

	// ProtocolLog receives every protocol line and state transition.
	// Defaults to log.NoopLogger.
	ProtocolLog log.Logger
}

// ackResult is the outcome delivered to an acknowledgement waiter.
type ackResult struct {
	rejected bool
	reason   string
	err      error
}

// callbackEntry pairs a callback with its handle. Entries dispatch in
// registration order.
type callbackEntry struct {
	id CallbackHandle
	fn Callback
}

// Client is a long-running connection manager for one Altitude processor.
// All methods are safe for concurrent use.
type Client struct {
	cfg     Config
	factory transport.Factory
	logger  *slog.Logger
	plog    log.Logger
	backoff *connection.Backoff
	norm    *normalize.Normalizer

	mu         sync.Mutex
	started    bool
	stopCh     chan struct{}
	connState  connection.State
	connID     string
	deviceID   string
	remoteAddr string
	connLive   bool
	tr         transport.Transport
	syncCh     chan struct{}
	syncClosed bool
	ackWaiters []chan ackResult

	// writeMu serializes command writes so waiter registration order
	// matches wire order.
	writeMu sync.Mutex

	stateMu sync.RWMutex
	st      *state.State

	cbMu      sync.Mutex
	callbacks []callbackEntry

	wg sync.WaitGroup
}

// New creates a Client. The client does not connect until Start is called.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" && cfg.TransportFactory == nil {
		return nil, errors.New("client: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = transport.DefaultPort
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ProtocolLog == nil {
		cfg.ProtocolLog = log.NoopLogger{}
	}

	factory := cfg.TransportFactory
	if factory == nil {
		host, port := cfg.Host, cfg.Port
		factory = func() transport.Transport {
			return transport.NewTCPTransport(host, port)
		}
	}

	return &Client{
		cfg:       cfg,
		factory:   factory,
		logger:    cfg.Logger,
		plog:      cfg.ProtocolLog,
		backoff:   connection.NewBackoffWithConfig(cfg.Backoff),
		norm:      normalize.New(),
		connState: connection.StateDisconnected,
		syncCh:    make(chan struct{}),
		st:        state.New(),
	}, nil
}

// Start connects to the processor and launches the read goroutine. It
// returns an error if the initial connection fails; automatic reconnection
// only covers connections lost after Start succeeded.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		c.setConnState(connection.StateDisconnected, err.Error())
		return err
	}

	c.wg.Add(1)
	go c.readLoop(stopCh)
	return nil
}

// Stop closes the connection and stops the read goroutine. Pending
// acknowledgement waiters fail with ErrStopped. No state mutation or
// callback delivery happens after Stop returns. Stop is idempotent and the
// client can be started again afterwards.
//
// Stop must not be called from a callback.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.stopCh)
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	c.wg.Wait()

	c.failAckWaiters(ErrStopped)
	c.setConnState(connection.StateDisconnected, "stopped")
	c.emitDisconnected()
	return nil
}

// WaitSynced blocks until the current connection has observed all bootstrap
// milestones, the context expires, or the client stops.
func (c *Client) WaitSynced(ctx context.Context) error {
	c.mu.Lock()
	syncCh := c.syncCh
	stopCh := c.stopCh
	c.mu.Unlock()

	if stopCh == nil {
		return ErrNotConnected
	}

	select {
	case <-syncCh:
		return nil
	case <-stopCh:
		return ErrStopped
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrSyncTimeout
		}
		return ctx.Err()
	}
}

// Command sends a raw command line without waiting for a response. A
// context that is already done fails the send before anything hits the
// wire; the write itself is bounded by CommandTimeout.
func (c *Client) Command(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sendLocked(line)
}

// CommandAck sends a raw command line and waits for the processor's answer.
// It returns nil on OK, a CommandRejectedError on ERROR, ErrAckTimeout if
// no answer arrives in time and ErrStopped if the client stops first.
//
// The processor carries no correlation identifiers, so answers are matched
// to commands in send order.
func (c *Client) CommandAck(ctx context.Context, line string) error {
	waiter := make(chan ackResult, 1)

	c.writeMu.Lock()
	c.mu.Lock()
	if c.tr == nil {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return ErrNotConnected
	}
	c.ackWaiters = append(c.ackWaiters, waiter)
	stopCh := c.stopCh
	c.mu.Unlock()

	if err := c.sendLocked(line); err != nil {
		c.removeWaiter(waiter)
		c.writeMu.Unlock()
		return err
	}
	c.writeMu.Unlock()

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case res := <-waiter:
		if res.err != nil {
			return res.err
		}
		if res.rejected {
			return &CommandRejectedError{Command: line, Reason: res.reason}
		}
		return nil
	case <-timer.C:
		c.removeWaiter(waiter)
		return ErrAckTimeout
	case <-stopCh:
		return ErrStopped
	case <-ctx.Done():
		c.removeWaiter(waiter)
		return ctx.Err()
	}
}

// RegisterCallback registers fn for event delivery and returns a handle for
// deregistration. Callbacks fire in registration order.
func (c *Client) RegisterCallback(fn Callback) CallbackHandle {
	h := uuid.New()
	c.cbMu.Lock()
	c.callbacks = append(c.callbacks, callbackEntry{id: h, fn: fn})
	c.cbMu.Unlock()
	return h
}

// DeregisterCallback removes a previously registered callback. It reports
// whether the handle was known.
func (c *Client) DeregisterCallback(h CallbackHandle) bool {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	for i, e := range c.callbacks {
		if e.id == h {
			c.callbacks = slices.Delete(c.callbacks, i, i+1)
			return true
		}
	}
	return false
}

// ConnectionState returns the current connection lifecycle state.
func (c *Client) ConnectionState() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Connected reports whether the transport is currently connected.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr != nil && c.tr.Connected()
}

// Synced reports whether the current connection has observed all bootstrap
// milestones.
func (c *Client) Synced() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.st.Synced()
}

// Snapshot returns an immutable copy of the device state.
func (c *Client) Snapshot() state.Snapshot {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.st.Snapshot()
}

// Profile returns the quirk profile selected for the current connection.
func (c *Client) Profile() quirks.Profile {
	return c.norm.Profile()
}

// UnknownMessageCount returns the number of unparsed lines seen on the
// current connection.
func (c *Client) UnknownMessageCount() uint64 {
	return c.norm.UnknownCount()
}

// RecentUnknownMessages returns the most recent unparsed lines, oldest
// first.
func (c *Client) RecentUnknownMessages() []string {
	return c.norm.RecentUnknown()
}

// connect dials a fresh transport, resets per-connection state and runs the
// bootstrap sequence. On success the client is in SYNCING.
func (c *Client) connect(ctx context.Context) error {
	c.setConnState(connection.StateConnecting, "")

	tr := c.factory()
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := tr.Connect(dialCtx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	if c.stopCh != nil {
		select {
		case <-c.stopCh:
			c.mu.Unlock()
			tr.Close()
			return ErrStopped
		default:
		}
	}
	c.tr = tr
	c.connID = uuid.NewString()
	c.deviceID = ""
	c.remoteAddr = ""
	if c.cfg.Host != "" {
		c.remoteAddr = net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	}
	c.connLive = true
	// The sync channel is replaced only once its previous incarnation has
	// been closed, so a waiter always holds the channel that signals the
	// next successful sync.
	if c.syncClosed {
		c.syncCh = make(chan struct{})
		c.syncClosed = false
	}
	c.mu.Unlock()

	// Fresh session: no observation from a previous connection survives,
	// and the quirk profile is derived again from the new IDENTS.
	c.norm.Reset()
	c.stateMu.Lock()
	c.st.Reset()
	c.stateMu.Unlock()

	c.setConnState(connection.StateConnected, "")
	c.emit(Event{Type: EventConnected})

	for _, line := range []string{
		"id " + c.cfg.ClientID,
		"send volume",
		"get_current_state",
	} {
		if err := c.Command(ctx, line); err != nil {
			tr.Close()
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	c.setConnState(connection.StateSyncing, "")
	return nil
}

// readLoop consumes the broadcast stream until the client stops. It owns
// disconnection handling and reconnection.
func (c *Client) readLoop(stopCh chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		c.mu.Lock()
		tr := c.tr
		c.mu.Unlock()
		if tr == nil {
			return
		}

		line, err := tr.ReadLine(c.cfg.ReadTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				// Idle connection. Keep reading.
				continue
			}
			select {
			case <-stopCh:
				return
			default:
			}
			if !c.handleDisconnect(stopCh, err) {
				return
			}
			continue
		}

		c.handleLine(line)
	}
}

// handleLine runs the full pipeline for one received line: parse, log,
// normalize, reduce, deliver.
func (c *Client) handleLine(line string) {
	msg := protocol.Parse(line)

	// The welcome banner names the unit; every log event from here on
	// carries its ID, the banner's own line event included.
	if w, ok := msg.(protocol.WelcomeMessage); ok {
		c.mu.Lock()
		c.deviceID = w.ID
		c.mu.Unlock()
	}

	c.logLine(log.DirectionIn, line, msg.Kind())

	for _, ev := range c.norm.Normalize(msg) {
		switch e := ev.(type) {
		case canonical.AckOK:
			c.resolveAck(ackResult{})
		case canonical.AckRejected:
			c.resolveAck(ackResult{rejected: true, reason: e.Reason})
		default:
			c.stateMu.Lock()
			state.Reduce(c.st, ev)
			c.stateMu.Unlock()
		}
	}

	c.emit(Event{Type: EventMessage, Message: msg})
	c.maybeSynced()
}

// maybeSynced promotes SYNCING to SYNCED once all milestones are observed.
// Reaching SYNCED is the only point where the backoff resets.
func (c *Client) maybeSynced() {
	c.mu.Lock()
	syncing := c.connState == connection.StateSyncing
	c.mu.Unlock()
	if !syncing {
		return
	}

	c.stateMu.RLock()
	synced := c.st.Synced()
	c.stateMu.RUnlock()
	if !synced {
		return
	}

	c.setConnState(connection.StateSynced, "")
	c.backoff.Reset()

	c.mu.Lock()
	if !c.syncClosed {
		close(c.syncCh)
		c.syncClosed = true
	}
	c.mu.Unlock()
}

// handleDisconnect tears down the lost connection and, unless reconnection
// is disabled, retries with backoff until a connection is established or
// the client stops. It reports whether the read loop should continue.
func (c *Client) handleDisconnect(stopCh chan struct{}, cause error) bool {
	c.logger.Warn("connection lost", "error", cause)
	c.logError(cause, "read")

	c.mu.Lock()
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()
	if tr != nil {
		tr.Close()
	}

	c.failAckWaiters(fmt.Errorf("%w: %w", ErrNotConnected, cause))
	c.emitDisconnected()

	if c.cfg.DisableReconnect {
		c.setConnState(connection.StateDisconnected, cause.Error())
		return false
	}
	c.setConnState(connection.StateReconnecting, cause.Error())

	for {
		delay := c.backoff.Next()
		c.logger.Debug("reconnecting",
			"delay", delay,
			"attempt", c.backoff.Attempts())

		timer := time.NewTimer(delay)
		select {
		case <-stopCh:
			timer.Stop()
			return false
		case <-timer.C:
		}

		if err := c.connect(context.Background()); err != nil {
			if errors.Is(err, ErrStopped) {
				return false
			}
			c.logger.Warn("reconnect attempt failed", "error", err)
			c.logError(err, "reconnect")
			c.setConnState(connection.StateReconnecting, err.Error())
			continue
		}

		select {
		case <-stopCh:
			c.mu.Lock()
			tr := c.tr
			c.tr = nil
			c.mu.Unlock()
			if tr != nil {
				tr.Close()
			}
			return false
		default:
		}
		return true
	}
}

// sendLocked writes one line. Callers hold writeMu.
func (c *Client) sendLocked(line string) error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil || !tr.Connected() {
		return ErrNotConnected
	}

	c.logLine(log.DirectionOut, line, protocol.KindUnknown)
	if err := tr.SendLine(line, c.cfg.CommandTimeout); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

// resolveAck delivers the device's answer to the oldest waiter. Unsolicited
// answers are dropped.
func (c *Client) resolveAck(res ackResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ackWaiters) == 0 {
		return
	}
	waiter := c.ackWaiters[0]
	c.ackWaiters = c.ackWaiters[1:]
	waiter <- res
}

// removeWaiter drops a waiter that gave up, keeping queue order intact.
func (c *Client) removeWaiter(waiter chan ackResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.ackWaiters {
		if w == waiter {
			c.ackWaiters = slices.Delete(c.ackWaiters, i, i+1)
			return
		}
	}
}

// failAckWaiters resolves every pending waiter with err.
func (c *Client) failAckWaiters(err error) {
	c.mu.Lock()
	waiters := c.ackWaiters
	c.ackWaiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w <- ackResult{err: err}
	}
}

// emitDisconnected delivers EventDisconnected at most once per connection:
// Stop after a transport loss must not repeat the event the read loop
// already delivered.
func (c *Client) emitDisconnected() {
	c.mu.Lock()
	live := c.connLive
	c.connLive = false
	c.mu.Unlock()
	if !live {
		return
	}
	c.emit(Event{Type: EventDisconnected})
}

// emit delivers an event to all callbacks in registration order. Each
// invocation is panic-isolated.
func (c *Client) emit(ev Event) {
	c.cbMu.Lock()
	entries := slices.Clone(c.callbacks)
	c.cbMu.Unlock()

	for _, e := range entries {
		c.invoke(e, ev)
	}
}

func (c *Client) invoke(e callbackEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("callback panicked", "handle", e.id, "panic", r)
		}
	}()
	e.fn(ev)
}

// setConnState records a state transition and logs it.
func (c *Client) setConnState(next connection.State, reason string) {
	c.mu.Lock()
	prev := c.connState
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.connState = next
	c.mu.Unlock()

	c.logger.Debug("connection state changed",
		"old", prev.String(),
		"new", next.String(),
		"reason", reason)

	ev := c.newLogEvent(log.DirectionLocal, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		OldState: prev.String(),
		NewState: next.String(),
		Reason:   reason,
	}
	c.plog.Log(ev)
}

// newLogEvent seeds a protocol log event with the connection's identity:
// connection ID, remote address and, once the welcome banner arrived, the
// device ID.
func (c *Client) newLogEvent(dir log.Direction, cat log.Category) log.Event {
	c.mu.Lock()
	connID := c.connID
	deviceID := c.deviceID
	remoteAddr := c.remoteAddr
	c.mu.Unlock()

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Category:     cat,
		RemoteAddr:   remoteAddr,
		DeviceID:     deviceID,
	}
}

// logLine records one protocol line in the protocol log.
func (c *Client) logLine(dir log.Direction, line string, kind protocol.Kind) {
	ev := c.newLogEvent(dir, log.CategoryLine)
	ev.Line = &log.LineEvent{Text: line}
	if kind != protocol.KindUnknown {
		ev.Line.Kind = kind.String()
	}
	c.plog.Log(ev)
}

// logError records an operational error in the protocol log.
func (c *Client) logError(err error, context string) {
	ev := c.newLogEvent(log.DirectionLocal, log.CategoryError)
	ev.Error = &log.ErrorEventData{Message: err.Error(), Context: context}
	c.plog.Log(ev)
}
