// Package normalize maps raw protocol messages to canonical events.
//
// This is the only place where wire semantics are interpreted: quirk
// handling, precedence assignment and acknowledgement routing all happen
// here, exactly once per message. Downstream components (the reducer, the
// pending command tracker) never look at wire text again.
package normalize

import (
	"sync"

	"github.com/altitude-protocol/altitude-go/pkg/canonical"
	"github.com/altitude-protocol/altitude-go/pkg/protocol"
	"github.com/altitude-protocol/altitude-go/pkg/quirks"
)

// maxUnknownSamples bounds the ring of recent unparsed lines kept for
// debugging.
const maxUnknownSamples = 20

// Normalizer converts raw messages into canonical events under the active
// quirk profile. The profile starts as the default and is updated when the
// IDENTS announcement arrives; Normalize handles that internally so callers
// only feed messages in arrival order.
//
// Normalize is called from the client's read goroutine; the counters may be
// read from any goroutine.
type Normalizer struct {
	mu             sync.Mutex
	profile        quirks.Profile
	unknownCount   uint64
	unknownSamples []string
}

// New creates a Normalizer using the default quirk profile.
func New() *Normalizer {
	return &Normalizer{}
}

// Profile returns the active quirk profile.
func (n *Normalizer) Profile() quirks.Profile {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.profile
}

// Reset restores the default profile and clears observability counters.
// Called on reconnect, before the new IDENTS announcement is processed.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.profile = quirks.ProfileDefault
	n.unknownCount = 0
	n.unknownSamples = nil
}

// UnknownCount returns the number of unknown messages seen since the last
// Reset.
func (n *Normalizer) UnknownCount() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unknownCount
}

// RecentUnknown returns up to the last 20 unknown lines, oldest first.
func (n *Normalizer) RecentUnknown() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.unknownSamples))
	copy(out, n.unknownSamples)
	return out
}

// Normalize maps one raw message to zero or more canonical events.
func (n *Normalizer) Normalize(msg protocol.Message) []canonical.Event {
	switch m := msg.(type) {
	case protocol.AudiosyncMessage:
		return []canonical.Event{canonical.SetAudiosync{Mode: m.Mode}}
	case protocol.AudiosyncStatusMessage:
		return []canonical.Event{canonical.SetAudiosyncStatus{Synchronized: m.Synchronized}}
	case protocol.BypassMessage:
		return []canonical.Event{canonical.SetBypass{State: m.State}}
	case protocol.CurrentPresetMessage:
		return []canonical.Event{canonical.SetCurrentPreset{Index: m.Index, Quality: canonical.QualityLabeled}}
	case protocol.CurrentSourceMessage:
		return []canonical.Event{canonical.SetCurrentSource{Index: m.Index, Quality: sourceQuality(m.Origin)}}
	case protocol.DecoderMessage:
		return []canonical.Event{canonical.SetDecoder{Decoder: m.Decoder, Upmixer: m.Upmixer}}
	case protocol.DimMessage:
		return []canonical.Event{canonical.SetDim{State: m.State}}
	case protocol.ErrorMessage:
		return []canonical.Event{canonical.AckRejected{Reason: m.Error}}
	case protocol.IdentsMessage:
		n.setProfile(quirks.Select(m.Features))
		return []canonical.Event{canonical.SetFeatures{Features: m.Features}}
	case protocol.MetaPresetLoadedMessage:
		if n.flags().MetaPresetLoadedIsSourceChange {
			return []canonical.Event{canonical.SetCurrentSource{Index: m.Index, Quality: canonical.QualityLabeled}}
		}
		return []canonical.Event{canonical.SetCurrentPreset{Index: m.Index, Quality: canonical.QualityLabeled}}
	case protocol.MuteMessage:
		return []canonical.Event{canonical.SetMute{State: m.State}}
	case protocol.OKMessage:
		return []canonical.Event{canonical.AckOK{}}
	case protocol.PresetMessage:
		return []canonical.Event{canonical.UpsertPreset{Index: m.Index, Name: m.Name, Quality: canonical.QualityLabeled}}
	case protocol.PresetsClearMessage:
		return []canonical.Event{canonical.ClearPresets{}}
	case protocol.SamplingRateMessage:
		return []canonical.Event{canonical.SetSamplingRate{Rate: m.Rate}}
	case protocol.SourceFormatMessage:
		return []canonical.Event{canonical.SetSourceFormat{Format: m.Format}}
	case protocol.SourceMessage:
		return []canonical.Event{canonical.UpsertSource{Index: m.Index, Name: m.Name, Quality: labelQuality(m.Origin)}}
	case protocol.SourcesChangedMessage:
		return []canonical.Event{canonical.SourcesChanged{}}
	case protocol.SourcesClearMessage:
		return []canonical.Event{canonical.ClearSources{}}
	case protocol.VolumeMessage:
		return []canonical.Event{canonical.SetVolume{Volume: m.Volume}}
	case protocol.WelcomeMessage:
		return []canonical.Event{canonical.SetWelcome{Version: m.Version, ID: m.ID}}
	case protocol.UnknownMessage:
		n.recordUnknown(m.Raw)
		return nil
	default:
		// BYE, SPEAKER_INFO, START_RUNNING carry no reducible state.
		return nil
	}
}

func (n *Normalizer) setProfile(p quirks.Profile) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.profile = p
}

func (n *Normalizer) flags() quirks.Flags {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.profile.Flags()
}

func (n *Normalizer) recordUnknown(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unknownCount++
	n.unknownSamples = append(n.unknownSamples, line)
	if len(n.unknownSamples) > maxUnknownSamples {
		n.unknownSamples = n.unknownSamples[1:]
	}
}

// sourceQuality ranks current-index updates by wire shape. CURRENT_PROFILE
// is the device's explicit answer; index-only PROFILE and OPTSOURCE are
// side-channel confirmations.
func sourceQuality(origin protocol.SourceOrigin) canonical.Quality {
	if origin == protocol.OriginCurrentProfile {
		return canonical.QualityLabeled
	}
	return canonical.QualityIndexOnly
}

// labelQuality ranks catalog entries by wire shape. PROFILE labels are the
// real names; OPTSOURCE carries firmware placeholder names.
func labelQuality(origin protocol.SourceOrigin) canonical.Quality {
	if origin == protocol.OriginOptSource {
		return canonical.QualityIndexOnly
	}
	return canonical.QualityLabeled
}
