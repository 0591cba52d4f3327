package protocol

// Message is one parsed line from the Altitude protocol stream.
// The concrete type identifies the wire shape that produced it.
type Message interface {
	// Kind returns the wire-level message tag.
	Kind() Kind
}

// Kind identifies the wire shape of a message.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAudiosync
	KindAudiosyncStatus
	KindBye
	KindBypass
	KindCurrentPreset
	KindCurrentSource
	KindDecoder
	KindDim
	KindError
	KindIdents
	KindLabel
	KindLabelsClear
	KindMetaPresetLoaded
	KindMute
	KindOK
	KindOptSource
	KindProfile
	KindProfilesClear
	KindSamplingRate
	KindSourceFormat
	KindSourcesChanged
	KindSpeakerInfo
	KindStartRunning
	KindVolume
	KindWelcome
)

// String returns the wire tag name.
func (k Kind) String() string {
	switch k {
	case KindAudiosync:
		return "AUDIOSYNC"
	case KindAudiosyncStatus:
		return "AUDIOSYNC_STATUS"
	case KindBye:
		return "BYE"
	case KindBypass:
		return "BYPASS"
	case KindCurrentPreset:
		return "CURRENT_PRESET"
	case KindCurrentSource:
		return "CURRENT_SOURCE"
	case KindDecoder:
		return "DECODER"
	case KindDim:
		return "DIM"
	case KindError:
		return "ERROR"
	case KindIdents:
		return "IDENTS"
	case KindLabel:
		return "LABEL"
	case KindLabelsClear:
		return "LABELS_CLEAR"
	case KindMetaPresetLoaded:
		return "META_PRESET_LOADED"
	case KindMute:
		return "MUTE"
	case KindOK:
		return "OK"
	case KindOptSource:
		return "OPTSOURCE"
	case KindProfile:
		return "PROFILE"
	case KindProfilesClear:
		return "PROFILES_CLEAR"
	case KindSamplingRate:
		return "SRATE"
	case KindSourceFormat:
		return "CURRENT_SOURCE_FORMAT_NAME"
	case KindSourcesChanged:
		return "SOURCES_CHANGED"
	case KindSpeakerInfo:
		return "SPEAKER_INFO"
	case KindStartRunning:
		return "START_RUNNING"
	case KindVolume:
		return "VOLUME"
	case KindWelcome:
		return "WELCOME"
	default:
		return "UNKNOWN"
	}
}

// SourceOrigin records which wire shape reported a source index or label.
// The normalizer uses it to rank competing updates: a PROFILE label is
// authoritative, an OPTSOURCE update is a lower-confidence confirmation.
type SourceOrigin uint8

const (
	// OriginCurrentProfile is a CURRENT_PROFILE line.
	OriginCurrentProfile SourceOrigin = iota
	// OriginProfile is a PROFILE line (labeled or index-only).
	OriginProfile
	// OriginOptSource is an OPTSOURCE line.
	OriginOptSource
)

// String returns the origin name.
func (o SourceOrigin) String() string {
	switch o {
	case OriginCurrentProfile:
		return "CURRENT_PROFILE"
	case OriginProfile:
		return "PROFILE"
	case OriginOptSource:
		return "OPTSOURCE"
	default:
		return "UNKNOWN"
	}
}

// AudiosyncMessage reports the audio sync mode ("AUDIOSYNC <mode>").
type AudiosyncMessage struct {
	Mode string
}

// AudiosyncStatusMessage reports sync status ("AUDIOSYNC STATUS 0|1").
type AudiosyncStatusMessage struct {
	Synchronized bool
}

// ByeMessage is the device's session farewell ("BYE").
type ByeMessage struct{}

// BypassMessage reports the optimizer bypass state ("BYPASS 0|1").
type BypassMessage struct {
	State bool
}

// CurrentPresetMessage reports the active preset index
// ("CURRENT_PRESET <n>"). The index -1 means the built-in preset.
type CurrentPresetMessage struct {
	Index int
}

// CurrentSourceMessage reports the active source index. Emitted for
// "CURRENT_PROFILE <n>", index-only "PROFILE <n>" and "OPTSOURCE <n>";
// Origin records which. A negative index means no selection.
type CurrentSourceMessage struct {
	Index  int
	Origin SourceOrigin
}

// DecoderMessage reports the active decoder and upmixer
// ("DECODER NONAUDIO d PLAYABLE d DECODER <name> UPMIXER <name>").
type DecoderMessage struct {
	NonAudio bool
	Playable bool
	Decoder  string
	Upmixer  string
}

// DimMessage reports the dim state ("DIM <n>").
type DimMessage struct {
	State bool
}

// ErrorMessage is a negative acknowledgement ("ERROR: <reason>").
type ErrorMessage struct {
	Error string
}

// IdentsMessage announces the device capability set
// ("IDENTS <feature> <feature> ...").
type IdentsMessage struct {
	Features []string
}

// MetaPresetLoadedMessage reports a loaded meta preset
// ("META_PRESET_LOADED <n>"). Some firmware uses it to signal a source
// change instead; the quirk profile decides.
type MetaPresetLoadedMessage struct {
	Index int
}

// MuteMessage reports the mute state ("MUTE 0|1").
type MuteMessage struct {
	State bool
}

// OKMessage is a positive acknowledgement ("OK").
type OKMessage struct{}

// PresetMessage is one preset catalog entry ("LABEL <n>: <name>").
type PresetMessage struct {
	Index int
	Name  string
}

// PresetsClearMessage resets the preset catalog ("LABELS_CLEAR").
type PresetsClearMessage struct{}

// SamplingRateMessage reports the input sampling rate ("SRATE <hz>").
type SamplingRateMessage struct {
	Rate int
}

// SourceMessage is one source catalog entry ("PROFILE <n>: <name>" or
// "OPTSOURCE <n> <name...>"). Origin distinguishes the two.
type SourceMessage struct {
	Index  int
	Name   string
	Origin SourceOrigin
}

// SourceFormatMessage reports the incoming stream format name
// ("CURRENT_SOURCE_FORMAT_NAME <name>").
type SourceFormatMessage struct {
	Format string
}

// SourcesChangedMessage is an informational marker some firmware emits
// before resending the source catalog ("SOURCES_CHANGED").
type SourcesChangedMessage struct{}

// SourcesClearMessage resets the source catalog ("PROFILES_CLEAR").
type SourcesClearMessage struct{}

// SpeakerInfoMessage reports one speaker position in spherical coordinates
// ("SPEAKER_INFO <n> <radius> <theta> <phi>").
type SpeakerInfoMessage struct {
	Speaker int
	Radius  float64
	Theta   float64
	Phi     float64
}

// StartRunningMessage signals that the optimizer finished starting up.
type StartRunningMessage struct{}

// UnknownMessage is any line that matched no known shape. It is counted by
// the normalizer but never treated as an error.
type UnknownMessage struct {
	Raw string
}

// VolumeMessage reports the master volume in dB ("VOLUME <db>").
type VolumeMessage struct {
	Volume float64
}

// WelcomeMessage is the connection banner
// ("Welcome on Trinnov Optimizer (Version <v>, ID <id>)").
type WelcomeMessage struct {
	Version string
	ID      string
}

func (AudiosyncMessage) Kind() Kind        { return KindAudiosync }
func (AudiosyncStatusMessage) Kind() Kind  { return KindAudiosyncStatus }
func (ByeMessage) Kind() Kind              { return KindBye }
func (BypassMessage) Kind() Kind           { return KindBypass }
func (CurrentPresetMessage) Kind() Kind    { return KindCurrentPreset }
func (DecoderMessage) Kind() Kind          { return KindDecoder }
func (DimMessage) Kind() Kind              { return KindDim }
func (ErrorMessage) Kind() Kind            { return KindError }
func (IdentsMessage) Kind() Kind           { return KindIdents }
func (MetaPresetLoadedMessage) Kind() Kind { return KindMetaPresetLoaded }
func (MuteMessage) Kind() Kind             { return KindMute }
func (OKMessage) Kind() Kind               { return KindOK }
func (PresetMessage) Kind() Kind           { return KindLabel }
func (PresetsClearMessage) Kind() Kind     { return KindLabelsClear }
func (SamplingRateMessage) Kind() Kind     { return KindSamplingRate }
func (SourceFormatMessage) Kind() Kind     { return KindSourceFormat }
func (SourcesChangedMessage) Kind() Kind   { return KindSourcesChanged }
func (SourcesClearMessage) Kind() Kind     { return KindProfilesClear }
func (SpeakerInfoMessage) Kind() Kind      { return KindSpeakerInfo }
func (StartRunningMessage) Kind() Kind     { return KindStartRunning }
func (UnknownMessage) Kind() Kind          { return KindUnknown }
func (VolumeMessage) Kind() Kind           { return KindVolume }
func (WelcomeMessage) Kind() Kind          { return KindWelcome }

// Kind for CurrentSourceMessage depends on the wire shape that produced it.
func (m CurrentSourceMessage) Kind() Kind {
	switch m.Origin {
	case OriginOptSource:
		return KindOptSource
	case OriginProfile:
		return KindProfile
	default:
		return KindCurrentSource
	}
}

// Kind for SourceMessage depends on the wire shape that produced it.
func (m SourceMessage) Kind() Kind {
	if m.Origin == OriginOptSource {
		return KindOptSource
	}
	return KindProfile
}
