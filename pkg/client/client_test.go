package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altitude-protocol/altitude-go/pkg/connection"
	"github.com/altitude-protocol/altitude-go/pkg/log"
	"github.com/altitude-protocol/altitude-go/pkg/quirks"
	"github.com/altitude-protocol/altitude-go/pkg/transport"
)

// recordingProtocolLog captures protocol log events for assertions.
type recordingProtocolLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingProtocolLog) Log(ev log.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingProtocolLog) snapshot() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// timeoutError satisfies net.Error so transport.IsTimeout treats it as a
// read deadline expiry.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeTransport is a scripted in-memory transport.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	incoming   chan string
	closed     chan struct{}
	closeOnce  sync.Once
	sent       chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan string, 64),
		closed:   make(chan struct{}),
		sent:     make(chan string, 64),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) ReadLine(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case line := <-f.incoming:
		return line, nil
	case <-f.closed:
		return "", transport.ErrConnectionClosed
	case <-timer.C:
		return "", timeoutError{}
	}
}

func (f *fakeTransport) SendLine(line string, timeout time.Duration) error {
	f.mu.Lock()
	connected := f.connected
	f.mu.Unlock()
	if !connected {
		return transport.ErrNotConnected
	}
	f.sent <- line
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

// push delivers lines as if the processor had sent them.
func (f *fakeTransport) push(lines ...string) {
	for _, line := range lines {
		f.incoming <- line
	}
}

// awaitSent returns the next line the client wrote.
func (f *fakeTransport) awaitSent(t *testing.T) string {
	t.Helper()
	select {
	case line := <-f.sent:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sent line")
		return ""
	}
}

var _ transport.Transport = (*fakeTransport)(nil)

// bootstrapTrace is a minimal full-state announcement that satisfies every
// sync milestone.
var bootstrapTrace = []string{
	"Welcome on Trinnov Optimizer (Version 4.3.1, ID 12345)",
	"OK",
	"VOLUME -40.0",
	"MUTE 0",
	"CURRENT_PRESET 1",
	"LABELS_CLEAR",
	"LABEL 0: Built-in",
	"LABEL 1: Night",
	"CURRENT_PROFILE 2",
	"PROFILES_CLEAR",
	"PROFILE 0: HDMI 1",
	"PROFILE 2: Apple TV",
}

func newTestClient(t *testing.T, ft *fakeTransport, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		ClientID:         "test-client",
		TransportFactory: func() transport.Transport { return ft },
		AckTimeout:       time.Second,
		ReadTimeout:      100 * time.Millisecond,
		DisableReconnect: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// startClient starts the client and consumes the three bootstrap commands.
func startClient(t *testing.T, c *Client, ft *fakeTransport) {
	t.Helper()
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop() })

	require.Equal(t, "id test-client", ft.awaitSent(t))
	require.Equal(t, "send volume", ft.awaitSent(t))
	require.Equal(t, "get_current_state", ft.awaitSent(t))
}

func TestStartBootstrapAndSync(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	require.Equal(t, connection.StateSyncing, c.ConnectionState())

	ft.push(bootstrapTrace...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))
	require.Equal(t, connection.StateSynced, c.ConnectionState())

	snap := c.Snapshot()
	require.NotNil(t, snap.Volume)
	assert.Equal(t, -40.0, *snap.Volume)
	require.NotNil(t, snap.Version)
	assert.Equal(t, "4.3.1", *snap.Version)
	require.NotNil(t, snap.CurrentPresetIndex)
	assert.Equal(t, 1, *snap.CurrentPresetIndex)
	require.NotNil(t, snap.CurrentSourceIndex)
	assert.Equal(t, 2, *snap.CurrentSourceIndex)
	assert.Equal(t, quirks.ProfileDefault, c.Profile())
}

func TestStartTwiceFails(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
}

func TestStartConnectFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.connectErr = errors.New("connection refused")
	c := newTestClient(t, ft, nil)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, connection.StateDisconnected, c.ConnectionState())

	// A failed Start leaves the client startable again.
	ft.mu.Lock()
	ft.connectErr = nil
	ft.mu.Unlock()
	startClient(t, c, ft)
}

func TestCommandAckOK(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	done := make(chan error, 1)
	go func() { done <- c.CommandAck(context.Background(), "volume -30") }()

	require.Equal(t, "volume -30", ft.awaitSent(t))
	ft.push("OK")

	require.NoError(t, <-done)
}

func TestCommandAckRejected(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	done := make(chan error, 1)
	go func() { done <- c.CommandAck(context.Background(), "loadp 99") }()

	require.Equal(t, "loadp 99", ft.awaitSent(t))
	ft.push("ERROR: no such preset")

	err := <-done
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "loadp 99", rejected.Command)
	assert.Equal(t, "no such preset", rejected.Reason)
}

func TestCommandAckAnswersInSendOrder(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	first := make(chan error, 1)
	go func() { first <- c.CommandAck(context.Background(), "loadp 99") }()
	require.Equal(t, "loadp 99", ft.awaitSent(t))

	second := make(chan error, 1)
	go func() { second <- c.CommandAck(context.Background(), "volume -30") }()
	require.Equal(t, "volume -30", ft.awaitSent(t))

	// Answers arrive in wire order: the rejection belongs to the first
	// command, the OK to the second.
	ft.push("ERROR: no such preset", "OK")

	var rejected *CommandRejectedError
	require.ErrorAs(t, <-first, &rejected)
	require.NoError(t, <-second)
}

func TestCommandAckTimeout(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, func(cfg *Config) {
		cfg.AckTimeout = 50 * time.Millisecond
	})
	startClient(t, c, ft)

	err := c.CommandAck(context.Background(), "volume -30")
	require.ErrorIs(t, err, ErrAckTimeout)
	require.Equal(t, "volume -30", ft.awaitSent(t))

	// The timed-out waiter left the queue; a later answer must not leak
	// into the next command's wait.
	ft.push("OK")
	done := make(chan error, 1)
	go func() { done <- c.CommandAck(context.Background(), "mute 1") }()
	require.Equal(t, "mute 1", ft.awaitSent(t))
	ft.push("OK")
	require.NoError(t, <-done)
}

func TestStopFailsPendingAck(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	done := make(chan error, 1)
	go func() { done <- c.CommandAck(context.Background(), "volume -30") }()
	require.Equal(t, "volume -30", ft.awaitSent(t))

	require.NoError(t, c.Stop())
	require.ErrorIs(t, <-done, ErrStopped)
	assert.Equal(t, connection.StateDisconnected, c.ConnectionState())

	// Stop is idempotent.
	require.NoError(t, c.Stop())
}

func TestCommandNotConnected(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)

	require.ErrorIs(t, c.Command(context.Background(), "mute 1"), ErrNotConnected)
	require.ErrorIs(t, c.CommandAck(context.Background(), "mute 1"), ErrNotConnected)
	require.ErrorIs(t, c.WaitSynced(context.Background()), ErrNotConnected)
}

func TestCallbackOrderAndPanicIsolation(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)

	var mu sync.Mutex
	var order []string
	c.RegisterCallback(func(ev Event) {
		mu.Lock()
		order = append(order, "first:"+ev.Type.String())
		mu.Unlock()
		panic("callback bug")
	})
	c.RegisterCallback(func(ev Event) {
		mu.Lock()
		order = append(order, "second:"+ev.Type.String())
		mu.Unlock()
	})

	startClient(t, c, ft)
	ft.push("MUTE 1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 4
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"first:connected", "second:connected",
		"first:message", "second:message",
	}, order[:4])
}

func TestDeregisterCallback(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)

	h := c.RegisterCallback(func(Event) {})
	require.True(t, c.DeregisterCallback(h))
	require.False(t, c.DeregisterCallback(h))
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	var mu sync.Mutex
	transports := []*fakeTransport{newFakeTransport(), newFakeTransport()}
	dials := 0

	c, err := New(Config{
		ClientID: "test-client",
		TransportFactory: func() transport.Transport {
			mu.Lock()
			defer mu.Unlock()
			ft := transports[dials]
			dials++
			return ft
		},
		ReadTimeout: 100 * time.Millisecond,
		Backoff: connection.BackoffConfig{
			Initial: time.Millisecond,
			Max:     2 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop() })

	first := transports[0]
	require.Equal(t, "id test-client", first.awaitSent(t))
	require.Equal(t, "send volume", first.awaitSent(t))
	require.Equal(t, "get_current_state", first.awaitSent(t))
	first.push(bootstrapTrace...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	// Drop the connection. The client reconnects through the factory and
	// bootstraps from scratch.
	first.Close()

	second := transports[1]
	require.Equal(t, "id test-client", second.awaitSent(t))
	require.Equal(t, "send volume", second.awaitSent(t))
	require.Equal(t, "get_current_state", second.awaitSent(t))

	// State from the first session is gone until the new trace arrives.
	require.Eventually(t, func() bool {
		return c.ConnectionState() == connection.StateSyncing
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, c.Snapshot().Volume)

	second.push(bootstrapTrace...)
	require.Eventually(t, func() bool {
		return c.ConnectionState() == connection.StateSynced
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.backoff.Attempts())
}

func TestDisableReconnectStaysDown(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	var mu sync.Mutex
	var events []EventType
	c.RegisterCallback(func(ev Event) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	})

	ft.Close()

	require.Eventually(t, func() bool {
		return c.ConnectionState() == connection.StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, events, EventDisconnected)
}

func TestUnknownMessageTracking(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	ft.push("FROBNICATE 42", "MUTE 1")

	require.Eventually(t, func() bool {
		return c.UnknownMessageCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"FROBNICATE 42"}, c.RecentUnknownMessages())
}

func TestTypedCommands(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	ctx := context.Background()
	tests := []struct {
		run  func() error
		want string
	}{
		{func() error { return c.VolumeSet(ctx, -40.5) }, "volume -40.5"},
		{func() error { return c.VolumeAdjust(ctx, 2) }, "dvolume 2"},
		{func() error { return c.VolumeUp(ctx) }, "dvolume 0.5"},
		{func() error { return c.VolumeDown(ctx) }, "dvolume -0.5"},
		{func() error { return c.VolumeRamp(ctx, -30, 500) }, "volume_ramp -30 500"},
		{func() error { return c.MuteOn(ctx) }, "mute 1"},
		{func() error { return c.MuteOff(ctx) }, "mute 0"},
		{func() error { return c.MuteToggle(ctx) }, "mute 2"},
		{func() error { return c.DimOn(ctx) }, "dim 1"},
		{func() error { return c.BypassToggle(ctx) }, "bypass 2"},
		{func() error { return c.FrontDisplayOff(ctx) }, "fav_light 0"},
		{func() error { return c.AcousticCorrectionSet(ctx, true) }, "use_acoustic_correct 1"},
		{func() error { return c.LevelAlignmentToggle(ctx) }, "use_level_alignment 2"},
		{func() error { return c.TimeAlignmentSet(ctx, false) }, "use_time_alignment 0"},
		{func() error { return c.QuickOptimizedSet(ctx, true) }, "quick_optimized 1"},
		{func() error { return c.PresetGet(ctx) }, "get_current_preset"},
		{func() error { return c.PresetSet(ctx, 3) }, "loadp 3"},
		{func() error { return c.SourceGet(ctx) }, "get_current_profile"},
		{func() error { return c.SourceSet(ctx, 2) }, "profile 2"},
		{func() error { return c.RemappingModeSet(ctx, Remapping3D) }, "remapping_mode 3D"},
		{func() error { return c.UpmixerSet(ctx, UpmixerDolby) }, "remapping_mode dolby"},
		{func() error { return c.PageUp(ctx) }, "page_adjust 1"},
		{func() error { return c.PageDown(ctx) }, "page_adjust -1"},
		{func() error { return c.Bye(ctx) }, "bye"},
	}
	for _, tt := range tests {
		require.NoError(t, tt.run())
		assert.Equal(t, tt.want, ft.awaitSent(t))
	}
}

func TestVolumePercentage(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	ctx := context.Background()
	require.NoError(t, c.VolumePercentageSet(ctx, 50))
	assert.Equal(t, "volume -50", ft.awaitSent(t))

	require.Error(t, c.VolumePercentageSet(ctx, 101))
	require.Error(t, c.VolumePercentageSet(ctx, -1))

	assert.InDelta(t, 50.0, VolumePercentage(-50), 1e-9)
	assert.InDelta(t, 100.0, VolumePercentage(20), 1e-9)
	assert.InDelta(t, 0.0, VolumePercentage(-120), 1e-9)
}

func TestSourceSetByName(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)
	ft.push(bootstrapTrace...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	require.NoError(t, c.SourceSetByName(ctx, "Apple TV"))
	assert.Equal(t, "profile 2", ft.awaitSent(t))

	err := c.SourceSetByName(ctx, "Betamax")
	require.ErrorIs(t, err, ErrUnknownCatalogName)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "connected", EventConnected.String())
	assert.Equal(t, "disconnected", EventDisconnected.String())
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "unknown", EventType(99).String())
}

func TestWaitSyncedTimeout(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	// Everything except the current source index: the client stays SYNCING.
	ft.push(
		"Welcome on Trinnov Optimizer (Version 4.3.1, ID 12345)",
		"VOLUME -40.0",
		"CURRENT_PRESET 1",
		"LABELS_CLEAR",
		"LABEL 0: Built-in",
		"PROFILES_CLEAR",
		"PROFILE 0: HDMI 1",
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.WaitSynced(ctx), ErrSyncTimeout)
	require.Equal(t, connection.StateSyncing, c.ConnectionState())

	// A plain cancellation is not a timeout.
	cancelCtx, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	err := c.WaitSynced(cancelCtx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrSyncTimeout)
}

func TestCommandHonorsContext(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Command(ctx, "mute 1"), context.Canceled)

	// The cancelled command never reached the wire.
	require.NoError(t, c.Command(context.Background(), "dim 1"))
	require.Equal(t, "dim 1", ft.awaitSent(t))
}

func TestStopAfterConnectionLossEmitsOneDisconnect(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	var mu sync.Mutex
	disconnects := 0
	c.RegisterCallback(func(ev Event) {
		if ev.Type == EventDisconnected {
			mu.Lock()
			disconnects++
			mu.Unlock()
		}
	})

	ft.Close()
	require.Eventually(t, func() bool {
		return c.ConnectionState() == connection.StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, disconnects)
}

func TestProtocolLogCarriesDeviceIdentity(t *testing.T) {
	ft := newFakeTransport()
	plog := &recordingProtocolLog{}
	c := newTestClient(t, ft, func(cfg *Config) {
		cfg.Host = "192.168.1.50"
		cfg.ProtocolLog = plog
	})
	startClient(t, c, ft)

	ft.push(
		"Welcome on Trinnov Optimizer (Version 4.3.1, ID 12345)",
		"VOLUME -40.0",
	)

	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Volume != nil
	}, 2*time.Second, 10*time.Millisecond)

	events := plog.snapshot()
	require.NotEmpty(t, events)

	var welcome, volume *log.Event
	for i := range events {
		if events[i].Line == nil {
			continue
		}
		switch {
		case strings.HasPrefix(events[i].Line.Text, "Welcome"):
			welcome = &events[i]
		case events[i].Line.Text == "VOLUME -40.0":
			volume = &events[i]
		}
	}

	// The banner names the unit; its own line event already carries the ID.
	require.NotNil(t, welcome)
	assert.Equal(t, "12345", welcome.DeviceID)
	assert.Equal(t, "192.168.1.50:44100", welcome.RemoteAddr)
	require.NotNil(t, volume)
	assert.Equal(t, "12345", volume.DeviceID)
	assert.NotEmpty(t, volume.ConnectionID)

	// Lines sent before the banner carry no device ID.
	for _, ev := range events {
		if ev.Line != nil && ev.Line.Text == "id test-client" {
			assert.Empty(t, ev.DeviceID)
		}
	}
}

func TestQuirkProfileSelectedFromIdents(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(t, ft, nil)
	startClient(t, c, ft)

	ft.push(fmt.Sprintf("IDENTS %s srate", quirks.FeatureAltitudeCI))

	require.Eventually(t, func() bool {
		return c.Profile() == quirks.ProfileAltitudeCI
	}, 2*time.Second, 10*time.Millisecond)

	// Under altitude_ci, META_PRESET_LOADED reports a source change.
	ft.push("META_PRESET_LOADED 1")
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.CurrentSourceIndex != nil && *snap.CurrentSourceIndex == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, c.Snapshot().CurrentPresetIndex)
}
