// Package state holds the device truth tracked from the broadcast stream.
//
// State is owned by the client orchestrator and mutated exclusively by
// Reduce, called from the single read goroutine. Everything else reads
// through Snapshot, which deep-copies. Reduce is deterministic, performs no
// I/O and is total over every canonical event variant.
package state

import (
	"sort"

	"github.com/altitude-protocol/altitude-go/pkg/canonical"
)

type catalogEntry struct {
	name    string
	quality canonical.Quality
}

// State is the mutable snapshot of device truth for one connection.
// Nil pointer fields mean "not yet observed". Negative current indices are
// valid sentinels meaning "no selection" and are stored unchanged.
type State struct {
	Audiosync       *string
	AudiosyncStatus *bool
	Bypass          *bool
	Decoder         *string
	Dim             *bool
	ID              *string
	Mute            *bool
	SamplingRate    *int
	SourceFormat    *string
	Upmixer         *string
	Version         *string
	Volume          *float64

	CurrentPresetIndex *int
	CurrentSourceIndex *int
	Features           []string

	presets map[int]catalogEntry
	sources map[int]catalogEntry

	currentPresetQuality canonical.Quality
	currentSourceQuality canonical.Quality

	seenWelcome       bool
	seenPresetCatalog bool
	seenSourceCatalog bool
	seenCurrentPreset bool
	seenCurrentSource bool
}

// New creates an empty State.
func New() *State {
	return &State{
		presets: make(map[int]catalogEntry),
		sources: make(map[int]catalogEntry),
	}
}

// Reset returns the state to empty. Called on every reconnect: the device
// may have changed while disconnected, so nothing is carried over.
func (s *State) Reset() {
	*s = State{
		presets: make(map[int]catalogEntry),
		sources: make(map[int]catalogEntry),
	}
}

// PresetName returns the catalog name for the current preset index.
func (s *State) PresetName() (string, bool) {
	return s.catalogName(s.presets, s.CurrentPresetIndex)
}

// SourceName returns the catalog name for the current source index.
func (s *State) SourceName() (string, bool) {
	return s.catalogName(s.sources, s.CurrentSourceIndex)
}

func (s *State) catalogName(catalog map[int]catalogEntry, index *int) (string, bool) {
	if index == nil {
		return "", false
	}
	entry, ok := catalog[*index]
	if !ok {
		return "", false
	}
	return entry.name, true
}

// Presets returns a copy of the preset catalog.
func (s *State) Presets() map[int]string {
	return copyCatalog(s.presets)
}

// Sources returns a copy of the source catalog.
func (s *State) Sources() map[int]string {
	return copyCatalog(s.sources)
}

// SourceIndexByName finds a source index by its catalog name.
func (s *State) SourceIndexByName(name string) (int, bool) {
	for index, entry := range s.sources {
		if entry.name == name {
			return index, true
		}
	}
	return 0, false
}

// Synced reports whether all bootstrap milestones have been observed:
// identity banner, both catalogs (or a current index proving the catalog
// question was answered), and both current indices.
func (s *State) Synced() bool {
	return s.seenWelcome &&
		s.seenCurrentPreset &&
		s.seenCurrentSource &&
		(s.seenPresetCatalog || s.CurrentPresetIndex != nil) &&
		(s.seenSourceCatalog || s.CurrentSourceIndex != nil)
}

// Reduce applies one canonical event to the state.
//
// Precedence: a strictly higher quality always overwrites; equal or lower
// quality is accepted only when the recorded value is still unknown. The one
// carve-out is current-selection indices: a different index always wins
// regardless of quality, because stickiness protects labels, not index
// movement.
func Reduce(s *State, ev canonical.Event) {
	switch e := ev.(type) {
	case canonical.SetAudiosync:
		s.Audiosync = &e.Mode
	case canonical.SetAudiosyncStatus:
		s.AudiosyncStatus = &e.Synchronized
	case canonical.SetBypass:
		s.Bypass = &e.State
	case canonical.SetCurrentPreset:
		s.currentPresetQuality = reduceIndex(&s.CurrentPresetIndex, s.currentPresetQuality, e.Index, e.Quality)
		s.seenCurrentPreset = true
	case canonical.SetCurrentSource:
		s.currentSourceQuality = reduceIndex(&s.CurrentSourceIndex, s.currentSourceQuality, e.Index, e.Quality)
		s.seenCurrentSource = true
	case canonical.SetDecoder:
		s.Decoder = &e.Decoder
		s.Upmixer = &e.Upmixer
	case canonical.SetDim:
		s.Dim = &e.State
	case canonical.SetFeatures:
		s.Features = append([]string(nil), e.Features...)
	case canonical.SetMute:
		s.Mute = &e.State
	case canonical.SetSamplingRate:
		s.SamplingRate = &e.Rate
	case canonical.SetSourceFormat:
		s.SourceFormat = &e.Format
	case canonical.SetVolume:
		s.Volume = &e.Volume
	case canonical.SetWelcome:
		s.Version = &e.Version
		s.ID = &e.ID
		s.seenWelcome = true
	case canonical.UpsertPreset:
		upsertEntry(s.presets, e.Index, e.Name, e.Quality)
		s.seenPresetCatalog = true
	case canonical.ClearPresets:
		s.presets = make(map[int]catalogEntry)
		s.seenPresetCatalog = true
	case canonical.UpsertSource:
		upsertEntry(s.sources, e.Index, e.Name, e.Quality)
		s.seenSourceCatalog = true
	case canonical.ClearSources:
		s.sources = make(map[int]catalogEntry)
		s.seenSourceCatalog = true
	case canonical.SourcesChanged, canonical.AckOK, canonical.AckRejected:
		// Informational or out-of-band; nothing to record.
	}
}

// reduceIndex applies the current-selection precedence rule and returns the
// quality now recorded for the field.
func reduceIndex(field **int, recorded canonical.Quality, index int, quality canonical.Quality) canonical.Quality {
	if *field == nil || **field != index || quality > recorded {
		v := index
		*field = &v
		return quality
	}
	return recorded
}

// upsertEntry applies the catalog precedence rule: a placeholder name never
// overwrites a label already recorded for the same index.
func upsertEntry(catalog map[int]catalogEntry, index int, name string, quality canonical.Quality) {
	if existing, ok := catalog[index]; ok && quality < existing.quality {
		return
	}
	catalog[index] = catalogEntry{name: name, quality: quality}
}

func copyCatalog(catalog map[int]catalogEntry) map[int]string {
	out := make(map[int]string, len(catalog))
	for index, entry := range catalog {
		out[index] = entry.name
	}
	return out
}

// CatalogEntry is one index/name pair in a Snapshot, ordered by index.
type CatalogEntry struct {
	Index int
	Name  string
}

// Snapshot is an immutable copy of State for consumers outside the read
// goroutine.
type Snapshot struct {
	Synced          bool
	Version         *string
	ID              *string
	Volume          *float64
	Mute            *bool
	Dim             *bool
	Bypass          *bool
	Preset          *string
	Source          *string
	SamplingRate    *int
	Audiosync       *string
	AudiosyncStatus *bool
	Decoder         *string
	Upmixer         *string
	SourceFormat    *string

	CurrentPresetIndex *int
	CurrentSourceIndex *int
	Features           []string

	Presets []CatalogEntry
	Sources []CatalogEntry
}

// Snapshot builds an immutable deep copy of the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Synced:             s.Synced(),
		Version:            copyPtr(s.Version),
		ID:                 copyPtr(s.ID),
		Volume:             copyPtr(s.Volume),
		Mute:               copyPtr(s.Mute),
		Dim:                copyPtr(s.Dim),
		Bypass:             copyPtr(s.Bypass),
		SamplingRate:       copyPtr(s.SamplingRate),
		Audiosync:          copyPtr(s.Audiosync),
		AudiosyncStatus:    copyPtr(s.AudiosyncStatus),
		Decoder:            copyPtr(s.Decoder),
		Upmixer:            copyPtr(s.Upmixer),
		SourceFormat:       copyPtr(s.SourceFormat),
		CurrentPresetIndex: copyPtr(s.CurrentPresetIndex),
		CurrentSourceIndex: copyPtr(s.CurrentSourceIndex),
		Features:           append([]string(nil), s.Features...),
		Presets:            sortedEntries(s.presets),
		Sources:            sortedEntries(s.sources),
	}
	if name, ok := s.PresetName(); ok {
		snap.Preset = &name
	}
	if name, ok := s.SourceName(); ok {
		snap.Source = &name
	}
	return snap
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortedEntries(catalog map[int]catalogEntry) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(catalog))
	for index, entry := range catalog {
		out = append(out, CatalogEntry{Index: index, Name: entry.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
