// Package adapter derives stable deltas and high-level change events from
// state snapshots, for integration layers that poll or subscribe to the
// client. A coordinator feeds successive snapshots in and gets back exactly
// what changed, in a form that is cheap to compare and to forward on an
// event bus.
package adapter

import (
	"slices"
	"sync"

	"github.com/altitude-protocol/altitude-go/pkg/client"
	"github.com/altitude-protocol/altitude-go/pkg/state"
)

// Delta is one changed field between two snapshots. Field names are stable
// snake_case identifiers; Old and New carry the dereferenced values, or nil
// for unknown.
type Delta struct {
	Field string
	Old   any
	New   any
}

// ChangeEvent is a high-level event for integration consumers.
type ChangeEvent struct {
	Kind    string
	Payload map[string]any
}

// Callback receives the new snapshot together with its deltas and events.
type Callback func(snap state.Snapshot, deltas []Delta, events []ChangeEvent)

// Adapter tracks the last seen snapshot and computes changes against it.
// Safe for concurrent use.
type Adapter struct {
	mu   sync.Mutex
	last *state.Snapshot
}

// New creates an empty Adapter.
func New() *Adapter {
	return &Adapter{}
}

// Last returns the most recent snapshot seen by Update.
func (a *Adapter) Last() (state.Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return state.Snapshot{}, false
	}
	return *a.last, true
}

// Update records snap and returns the deltas and change events against the
// previous snapshot. The first update returns nothing: there is no previous
// observation to diff against.
func (a *Adapter) Update(snap state.Snapshot) ([]Delta, []ChangeEvent) {
	a.mu.Lock()
	previous := a.last
	a.last = &snap
	a.mu.Unlock()

	if previous == nil {
		return nil, nil
	}
	return buildDeltas(*previous, snap), buildEvents(*previous, snap)
}

// Attach registers a client callback that runs the adapter on every client
// event and forwards the result to cb. The very first delivery carries a
// single "initial" event so consumers can seed their state. The returned
// handle deregisters via the client.
func Attach(c *client.Client, cb Callback) client.CallbackHandle {
	a := New()
	return c.RegisterCallback(func(client.Event) {
		snap := c.Snapshot()

		a.mu.Lock()
		first := a.last == nil
		a.mu.Unlock()

		deltas, events := a.Update(snap)
		if first {
			events = append([]ChangeEvent{{Kind: "initial", Payload: map[string]any{}}}, events...)
		}
		cb(snap, deltas, events)
	})
}

func buildDeltas(prev, cur state.Snapshot) []Delta {
	var deltas []Delta

	if prev.Synced != cur.Synced {
		deltas = append(deltas, Delta{Field: "synced", Old: prev.Synced, New: cur.Synced})
	}
	diffPtr(&deltas, "version", prev.Version, cur.Version)
	diffPtr(&deltas, "id", prev.ID, cur.ID)
	diffPtr(&deltas, "volume", prev.Volume, cur.Volume)
	diffPtr(&deltas, "mute", prev.Mute, cur.Mute)
	diffPtr(&deltas, "dim", prev.Dim, cur.Dim)
	diffPtr(&deltas, "bypass", prev.Bypass, cur.Bypass)
	diffPtr(&deltas, "preset", prev.Preset, cur.Preset)
	diffPtr(&deltas, "source", prev.Source, cur.Source)
	diffPtr(&deltas, "sampling_rate", prev.SamplingRate, cur.SamplingRate)
	diffPtr(&deltas, "audiosync", prev.Audiosync, cur.Audiosync)
	diffPtr(&deltas, "audiosync_status", prev.AudiosyncStatus, cur.AudiosyncStatus)
	diffPtr(&deltas, "decoder", prev.Decoder, cur.Decoder)
	diffPtr(&deltas, "upmixer", prev.Upmixer, cur.Upmixer)
	diffPtr(&deltas, "source_format", prev.SourceFormat, cur.SourceFormat)
	diffPtr(&deltas, "current_preset_index", prev.CurrentPresetIndex, cur.CurrentPresetIndex)
	diffPtr(&deltas, "current_source_index", prev.CurrentSourceIndex, cur.CurrentSourceIndex)

	if !slices.Equal(prev.Presets, cur.Presets) {
		deltas = append(deltas, Delta{Field: "presets", Old: prev.Presets, New: cur.Presets})
	}
	if !slices.Equal(prev.Sources, cur.Sources) {
		deltas = append(deltas, Delta{Field: "sources", Old: prev.Sources, New: cur.Sources})
	}
	return deltas
}

func diffPtr[T comparable](deltas *[]Delta, field string, old, new *T) {
	if ptrEqual(old, new) {
		return
	}
	*deltas = append(*deltas, Delta{Field: field, Old: deref(old), New: deref(new)})
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// deref converts a pointer to its value, or nil for unknown. Keeps Delta
// payloads free of typed pointers.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func buildEvents(prev, cur state.Snapshot) []ChangeEvent {
	return changeEvents(
		change("volume_changed", "db", prev.Volume, cur.Volume),
		change("mute_changed", "mute", prev.Mute, cur.Mute),
		change("dim_changed", "dim", prev.Dim, cur.Dim),
		change("bypass_changed", "bypass", prev.Bypass, cur.Bypass),
		change("preset_changed", "preset", prev.Preset, cur.Preset),
		change("source_changed", "source", prev.Source, cur.Source),
		change("sampling_rate_changed", "hz", prev.SamplingRate, cur.SamplingRate),
		change("decoder_changed", "decoder", prev.Decoder, cur.Decoder),
		change("upmixer_changed", "upmixer", prev.Upmixer, cur.Upmixer),
	)
}

// change builds one event when the new value is known and differs from the
// old. Clearing a field on reconnect is not a device-side change, so a nil
// new value never fires.
func change[T comparable](kind, key string, old, new *T) *ChangeEvent {
	if new == nil || ptrEqual(old, new) {
		return nil
	}
	return &ChangeEvent{Kind: kind, Payload: map[string]any{key: *new}}
}

func changeEvents(candidates ...*ChangeEvent) []ChangeEvent {
	var events []ChangeEvent
	for _, ev := range candidates {
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}
