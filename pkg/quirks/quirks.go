// Package quirks selects a normalizer behavior profile from the device's
// announced capability set.
//
// Altitude firmware variants disagree on the meaning of a few messages. The
// differences are isolated here as a closed set of profiles, each resolving
// to a fixed Flags value. A profile is selected once per connection from the
// IDENTS announcement and stays fixed until reconnect; before IDENTS arrives
// the default profile applies, so normalization never blocks on identity.
package quirks

// FeatureAltitudeCI is the capability string announced by Altitude CI
// processors, whose firmware repurposes META_PRESET_LOADED.
const FeatureAltitudeCI = "altitude_ci"

// Profile identifies a quirk profile. The zero value is the default.
type Profile uint8

const (
	// ProfileDefault is the standard Altitude protocol semantics.
	ProfileDefault Profile = iota

	// ProfileAltitudeCI covers Altitude CI firmware, which reports source
	// changes through META_PRESET_LOADED.
	ProfileAltitudeCI
)

// String returns the profile name.
func (p Profile) String() string {
	switch p {
	case ProfileAltitudeCI:
		return "altitude_ci"
	default:
		return "default"
	}
}

// Flags is the behavior configuration a profile resolves to. New quirks are
// added here as flags consumed by the normalizer; the reducer never sees
// them.
type Flags struct {
	// MetaPresetLoadedIsSourceChange reinterprets META_PRESET_LOADED as a
	// source-change signal instead of a preset-change signal.
	MetaPresetLoadedIsSourceChange bool
}

// Flags returns the fixed behavior flags for the profile.
func (p Profile) Flags() Flags {
	switch p {
	case ProfileAltitudeCI:
		return Flags{MetaPresetLoadedIsSourceChange: true}
	default:
		return Flags{}
	}
}

// Select resolves a profile from the feature strings announced by IDENTS.
func Select(features []string) Profile {
	for _, f := range features {
		if f == FeatureAltitudeCI {
			return ProfileAltitudeCI
		}
	}
	return ProfileDefault
}
