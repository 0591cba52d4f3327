// Package canonical defines the normalized events the state reducer
// consumes.
//
// A canonical event describes one state change independently of which wire
// message produced it. All quirk handling happens before an event is built;
// the reducer only needs the event itself plus the Quality ordinal to rank
// competing updates to the same field.
package canonical

// Quality ranks competing updates to the same logical field. A strictly
// higher quality always overwrites; equal or lower quality is accepted only
// when the field is still unknown.
type Quality uint8

const (
	// QualityUnset is the quality of a field nothing has written yet.
	QualityUnset Quality = iota

	// QualityIndexOnly is an update derived from a bare index message
	// (index-only PROFILE, OPTSOURCE) or a placeholder name.
	QualityIndexOnly

	// QualityLabeled is an update derived from an explicit labeled message
	// (CURRENT_PRESET, CURRENT_PROFILE, LABEL n: name, PROFILE n: name).
	QualityLabeled
)

// String returns the quality name.
func (q Quality) String() string {
	switch q {
	case QualityIndexOnly:
		return "index-only"
	case QualityLabeled:
		return "labeled"
	default:
		return "unset"
	}
}

// Event is one canonical state change. The concrete type identifies the
// logical field it targets.
type Event interface {
	canonicalEvent()
}

// SetAudiosync sets the audio sync mode.
type SetAudiosync struct {
	Mode string
}

// SetAudiosyncStatus sets the audio sync status.
type SetAudiosyncStatus struct {
	Synchronized bool
}

// SetBypass sets the optimizer bypass state.
type SetBypass struct {
	State bool
}

// SetCurrentPreset sets the active preset index. Negative indices are valid
// sentinels ("built-in preset") and are stored unchanged.
type SetCurrentPreset struct {
	Index   int
	Quality Quality
}

// SetCurrentSource sets the active source index. Negative indices mean "no
// selection" and are stored unchanged.
type SetCurrentSource struct {
	Index   int
	Quality Quality
}

// SetDecoder sets the active decoder and upmixer.
type SetDecoder struct {
	Decoder string
	Upmixer string
}

// SetDim sets the dim state.
type SetDim struct {
	State bool
}

// SetFeatures records the device capability set from IDENTS.
type SetFeatures struct {
	Features []string
}

// SetMute sets the mute state.
type SetMute struct {
	State bool
}

// SetSamplingRate sets the input sampling rate in Hz.
type SetSamplingRate struct {
	Rate int
}

// SetSourceFormat sets the incoming stream format name.
type SetSourceFormat struct {
	Format string
}

// SetVolume sets the master volume in dB.
type SetVolume struct {
	Volume float64
}

// SetWelcome records the firmware version and device id from the banner.
type SetWelcome struct {
	Version string
	ID      string
}

// UpsertPreset adds or replaces one preset catalog entry.
type UpsertPreset struct {
	Index   int
	Name    string
	Quality Quality
}

// ClearPresets empties the preset catalog. Entries accumulate again until
// the next clear.
type ClearPresets struct{}

// UpsertSource adds or replaces one source catalog entry.
type UpsertSource struct {
	Index   int
	Name    string
	Quality Quality
}

// ClearSources empties the source catalog.
type ClearSources struct{}

// SourcesChanged is an informational marker; the reducer records nothing
// but consumers may use it to expect a catalog rebuild.
type SourcesChanged struct{}

// AckOK is a positive command acknowledgement. It is routed to the pending
// command tracker, never to the reducer.
type AckOK struct{}

// AckRejected is a negative command acknowledgement carrying the device's
// reason. Routed to the pending command tracker, never to the reducer.
type AckRejected struct {
	Reason string
}

func (SetAudiosync) canonicalEvent()       {}
func (SetAudiosyncStatus) canonicalEvent() {}
func (SetBypass) canonicalEvent()          {}
func (SetCurrentPreset) canonicalEvent()   {}
func (SetCurrentSource) canonicalEvent()   {}
func (SetDecoder) canonicalEvent()         {}
func (SetDim) canonicalEvent()             {}
func (SetFeatures) canonicalEvent()        {}
func (SetMute) canonicalEvent()            {}
func (SetSamplingRate) canonicalEvent()    {}
func (SetSourceFormat) canonicalEvent()    {}
func (SetVolume) canonicalEvent()          {}
func (SetWelcome) canonicalEvent()         {}
func (UpsertPreset) canonicalEvent()       {}
func (ClearPresets) canonicalEvent()       {}
func (UpsertSource) canonicalEvent()       {}
func (ClearSources) canonicalEvent()       {}
func (SourcesChanged) canonicalEvent()     {}
func (AckOK) canonicalEvent()              {}
func (AckRejected) canonicalEvent()        {}
