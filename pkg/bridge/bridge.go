package bridge

import (
	"sync"

	"github.com/altitude-protocol/altitude-go/pkg/adapter"
	"github.com/altitude-protocol/altitude-go/pkg/state"
)

// eventPrefix namespaces bus event types.
const eventPrefix = "trinnov_altitude."

// BusEvent is one event bus payload.
type BusEvent struct {
	Type string
	Data map[string]any
}

// Update is one coordinator update package derived from adapter output.
type Update struct {
	// CoordinatorData is the flat payload integrations poll.
	CoordinatorData map[string]any

	// ChangedFields lists the snapshot fields that changed, in snapshot
	// field order.
	ChangedFields []string

	// BusEvents are the high-level events to publish.
	BusEvents []BusEvent
}

// EventEmitter publishes one bus event.
type EventEmitter func(eventType string, data map[string]any)

// CoordinatorPayload flattens a snapshot into the stable payload map.
// Unknown values are present as nil so consumers see a fixed key set.
func CoordinatorPayload(snap state.Snapshot) map[string]any {
	return map[string]any{
		"available":            snap.Synced,
		"version":              deref(snap.Version),
		"device_id":            deref(snap.ID),
		"volume_db":            deref(snap.Volume),
		"mute":                 deref(snap.Mute),
		"dim":                  deref(snap.Dim),
		"bypass":               deref(snap.Bypass),
		"preset":               deref(snap.Preset),
		"source":               deref(snap.Source),
		"sampling_rate_hz":     deref(snap.SamplingRate),
		"audiosync_mode":       deref(snap.Audiosync),
		"audiosync_status":     deref(snap.AudiosyncStatus),
		"decoder":              deref(snap.Decoder),
		"upmixer":              deref(snap.Upmixer),
		"source_format":        deref(snap.SourceFormat),
		"current_preset_index": deref(snap.CurrentPresetIndex),
		"current_source_index": deref(snap.CurrentSourceIndex),
		"presets":              catalogMap(snap.Presets),
		"sources":              catalogMap(snap.Sources),
	}
}

// ToBusEvents maps adapter events to namespaced bus events.
func ToBusEvents(events []adapter.ChangeEvent) []BusEvent {
	out := make([]BusEvent, 0, len(events))
	for _, ev := range events {
		data := make(map[string]any, len(ev.Payload))
		for k, v := range ev.Payload {
			data[k] = v
		}
		out = append(out, BusEvent{Type: eventPrefix + ev.Kind, Data: data})
	}
	return out
}

// BuildUpdate assembles one Update from adapter output.
func BuildUpdate(snap state.Snapshot, deltas []adapter.Delta, events []adapter.ChangeEvent) Update {
	changed := make([]string, 0, len(deltas))
	for _, d := range deltas {
		changed = append(changed, d.Field)
	}
	return Update{
		CoordinatorData: CoordinatorPayload(snap),
		ChangedFields:   changed,
		BusEvents:       ToBusEvents(events),
	}
}

// Dispatcher converts adapter updates and publishes their bus events.
// Safe for concurrent use.
type Dispatcher struct {
	mu   sync.Mutex
	emit EventEmitter
	last *Update
}

// NewDispatcher creates a Dispatcher. A nil emitter disables publishing;
// updates are still built and retained.
func NewDispatcher(emit EventEmitter) *Dispatcher {
	return &Dispatcher{emit: emit}
}

// HandleAdapterUpdate builds the Update, retains it and publishes its bus
// events. Intended as the body of an adapter.Callback.
func (d *Dispatcher) HandleAdapterUpdate(snap state.Snapshot, deltas []adapter.Delta, events []adapter.ChangeEvent) Update {
	update := BuildUpdate(snap, deltas, events)

	d.mu.Lock()
	d.last = &update
	emit := d.emit
	d.mu.Unlock()

	if emit != nil {
		for _, ev := range update.BusEvents {
			emit(ev.Type, ev.Data)
		}
	}
	return update
}

// LastUpdate returns the most recently handled update.
func (d *Dispatcher) LastUpdate() (Update, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Update{}, false
	}
	return *d.last, true
}

func catalogMap(entries []state.CatalogEntry) map[int]string {
	out := make(map[int]string, len(entries))
	for _, e := range entries {
		out[e.Index] = e.Name
	}
	return out
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
