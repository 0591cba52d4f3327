package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altitude-protocol/altitude-go/pkg/client"
	"github.com/altitude-protocol/altitude-go/pkg/connection"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(nil)
	require.NoError(t, server.Start("127.0.0.1:0"))
	t.Cleanup(server.Stop)
	return server
}

func startClientAgainst(t *testing.T, server *Server) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{
		Host:             "127.0.0.1",
		Port:             server.Port(),
		ClientID:         "integration-test",
		ReadTimeout:      200 * time.Millisecond,
		DisableReconnect: true,
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestClientSyncsAgainstMockServer(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))
	require.Equal(t, connection.StateSynced, c.ConnectionState())

	snap := c.Snapshot()
	require.True(t, snap.Synced)

	require.NotNil(t, snap.Version)
	assert.Equal(t, "4.3.2rc1", *snap.Version)
	require.NotNil(t, snap.ID)
	assert.Equal(t, "10485761", *snap.ID)

	require.NotNil(t, snap.Volume)
	assert.Equal(t, -40.0, *snap.Volume)
	require.NotNil(t, snap.Mute)
	assert.False(t, *snap.Mute)

	// The unit reports no loaded preset.
	require.NotNil(t, snap.CurrentPresetIndex)
	assert.Equal(t, -1, *snap.CurrentPresetIndex)
	assert.Nil(t, snap.Preset)

	require.NotNil(t, snap.CurrentSourceIndex)
	assert.Equal(t, 1, *snap.CurrentSourceIndex)
	require.NotNil(t, snap.Source)
	assert.Equal(t, "Apple TV", *snap.Source)

	require.NotNil(t, snap.SamplingRate)
	assert.Equal(t, 48000, *snap.SamplingRate)
	require.NotNil(t, snap.Audiosync)
	assert.Equal(t, "Slave", *snap.Audiosync)

	// The state dump contains lines the client does not understand; they
	// are counted, not fatal.
	assert.Greater(t, c.UnknownMessageCount(), uint64(0))
}

func TestVolumeCommandsRoundTrip(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	require.NoError(t, c.CommandAck(ctx, "volume -30"))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Volume != nil && *snap.Volume == -30.0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.CommandAck(ctx, "dvolume -1.5"))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Volume != nil && *snap.Volume == -31.5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestToggleCommandsRoundTrip(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	require.NoError(t, c.MuteOn(ctx))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Mute != nil && *snap.Mute
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.MuteToggle(ctx))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Mute != nil && !*snap.Mute
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.DimOn(ctx))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Dim != nil && *snap.Dim
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresetAndSourceSelection(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	require.NoError(t, c.PresetSet(ctx, 2))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.CurrentPresetIndex != nil && *snap.CurrentPresetIndex == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.SourceSetByName(ctx, "PS 5"))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Source != nil && *snap.Source == "PS 5"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidCommandIsRejected(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	err := c.CommandAck(ctx, "frobnicate 42")
	var rejected *client.CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "invalid command")
}

func TestByeClosesSession(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	require.NoError(t, c.Bye(ctx))
	require.Eventually(t, func() bool {
		return c.ConnectionState() == connection.StateDisconnected
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPowerOffStopsServer(t *testing.T) {
	server := startServer(t)
	c := startClientAgainst(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitSynced(ctx))

	require.NoError(t, c.PowerOff(ctx))
	require.Eventually(t, func() bool {
		return c.ConnectionState() == connection.StateDisconnected
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerStopIsIdempotent(t *testing.T) {
	server := startServer(t)
	server.Stop()
	server.Stop()
}
