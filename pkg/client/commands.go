package client

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// Volume bounds of the processor, in dB.
const (
	VolumeMin = -120.0
	VolumeMax = 20.0
)

// toggle is the wire value that flips a boolean setting.
const toggle = "2"

// RemappingMode selects the speaker remapping algorithm.
type RemappingMode string

const (
	RemappingNone       RemappingMode = "none"
	Remapping2D         RemappingMode = "2D"
	Remapping3D         RemappingMode = "3D"
	RemappingAutorotate RemappingMode = "autorotate"
	RemappingManual     RemappingMode = "manual"
)

// UpmixerMode selects the upmixer.
type UpmixerMode string

const (
	UpmixerAuto          UpmixerMode = "auto"
	UpmixerAuro3D        UpmixerMode = "auro3d"
	UpmixerDTS           UpmixerMode = "dts"
	UpmixerDolby         UpmixerMode = "dolby"
	UpmixerNative        UpmixerMode = "native"
	UpmixerLegacy        UpmixerMode = "legacy"
	UpmixerUpmixOnNative UpmixerMode = "upmix_on_native"
)

// VolumeSet sets the volume to an absolute dB value.
func (c *Client) VolumeSet(ctx context.Context, db float64) error {
	return c.Command(ctx, "volume "+formatFloat(db))
}

// VolumeAdjust adjusts the volume by a relative dB value.
func (c *Client) VolumeAdjust(ctx context.Context, delta float64) error {
	return c.Command(ctx, "dvolume "+formatFloat(delta))
}

// VolumeUp raises the volume by 0.5 dB.
func (c *Client) VolumeUp(ctx context.Context) error {
	return c.VolumeAdjust(ctx, 0.5)
}

// VolumeDown lowers the volume by 0.5 dB.
func (c *Client) VolumeDown(ctx context.Context) error {
	return c.VolumeAdjust(ctx, -0.5)
}

// VolumeRamp ramps the volume to an absolute dB value over a duration in
// milliseconds.
func (c *Client) VolumeRamp(ctx context.Context, db float64, durationMs int) error {
	return c.Command(ctx, fmt.Sprintf("volume_ramp %s %d", formatFloat(db), durationMs))
}

// VolumePercentageSet sets the volume as a percentage of the full range.
func (c *Client) VolumePercentageSet(ctx context.Context, percentage float64) error {
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("percentage %v out of range [0, 100]", percentage)
	}
	db := percentage/100*(VolumeMax-VolumeMin) + VolumeMin
	// Round to the 0.1 dB resolution the processor works in.
	db = math.Round(db*10) / 10
	return c.VolumeSet(ctx, db)
}

// VolumePercentage converts an absolute dB value to a percentage of the
// full range.
func VolumePercentage(db float64) float64 {
	return (db - VolumeMin) / (VolumeMax - VolumeMin) * 100
}

// MuteSet sets mute on or off.
func (c *Client) MuteSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "mute "+boolArg(on))
}

// MuteOn mutes the processor.
func (c *Client) MuteOn(ctx context.Context) error { return c.MuteSet(ctx, true) }

// MuteOff unmutes the processor.
func (c *Client) MuteOff(ctx context.Context) error { return c.MuteSet(ctx, false) }

// MuteToggle flips the mute state.
func (c *Client) MuteToggle(ctx context.Context) error {
	return c.Command(ctx, "mute "+toggle)
}

// DimSet sets dim on or off.
func (c *Client) DimSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "dim "+boolArg(on))
}

// DimOn enables dim.
func (c *Client) DimOn(ctx context.Context) error { return c.DimSet(ctx, true) }

// DimOff disables dim.
func (c *Client) DimOff(ctx context.Context) error { return c.DimSet(ctx, false) }

// DimToggle flips the dim state.
func (c *Client) DimToggle(ctx context.Context) error {
	return c.Command(ctx, "dim "+toggle)
}

// BypassSet sets optimizer bypass on or off.
func (c *Client) BypassSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "bypass "+boolArg(on))
}

// BypassOn enables optimizer bypass.
func (c *Client) BypassOn(ctx context.Context) error { return c.BypassSet(ctx, true) }

// BypassOff disables optimizer bypass.
func (c *Client) BypassOff(ctx context.Context) error { return c.BypassSet(ctx, false) }

// BypassToggle flips the bypass state.
func (c *Client) BypassToggle(ctx context.Context) error {
	return c.Command(ctx, "bypass "+toggle)
}

// FrontDisplaySet turns the front display on or off.
func (c *Client) FrontDisplaySet(ctx context.Context, on bool) error {
	return c.Command(ctx, "fav_light "+boolArg(on))
}

// FrontDisplayOn turns the front display on.
func (c *Client) FrontDisplayOn(ctx context.Context) error {
	return c.FrontDisplaySet(ctx, true)
}

// FrontDisplayOff turns the front display off.
func (c *Client) FrontDisplayOff(ctx context.Context) error {
	return c.FrontDisplaySet(ctx, false)
}

// FrontDisplayToggle flips the front display state.
func (c *Client) FrontDisplayToggle(ctx context.Context) error {
	return c.Command(ctx, "fav_light "+toggle)
}

// AcousticCorrectionSet sets the acoustic correction on or off.
func (c *Client) AcousticCorrectionSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "use_acoustic_correct "+boolArg(on))
}

// AcousticCorrectionToggle flips the acoustic correction state.
func (c *Client) AcousticCorrectionToggle(ctx context.Context) error {
	return c.Command(ctx, "use_acoustic_correct "+toggle)
}

// LevelAlignmentSet sets level alignment on or off.
func (c *Client) LevelAlignmentSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "use_level_alignment "+boolArg(on))
}

// LevelAlignmentToggle flips the level alignment state.
func (c *Client) LevelAlignmentToggle(ctx context.Context) error {
	return c.Command(ctx, "use_level_alignment "+toggle)
}

// TimeAlignmentSet sets time alignment on or off.
func (c *Client) TimeAlignmentSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "use_time_alignment "+boolArg(on))
}

// TimeAlignmentToggle flips the time alignment state.
func (c *Client) TimeAlignmentToggle(ctx context.Context) error {
	return c.Command(ctx, "use_time_alignment "+toggle)
}

// QuickOptimizedSet sets the quick optimized mode on or off.
func (c *Client) QuickOptimizedSet(ctx context.Context, on bool) error {
	return c.Command(ctx, "quick_optimized "+boolArg(on))
}

// QuickOptimizedToggle flips the quick optimized mode.
func (c *Client) QuickOptimizedToggle(ctx context.Context) error {
	return c.Command(ctx, "quick_optimized "+toggle)
}

// PresetGet requests the current preset.
func (c *Client) PresetGet(ctx context.Context) error {
	return c.Command(ctx, "get_current_preset")
}

// PresetSet loads the preset with the given index. Index 0 is the built-in
// preset; user presets start at 1.
func (c *Client) PresetSet(ctx context.Context, index int) error {
	return c.Command(ctx, "loadp "+strconv.Itoa(index))
}

// SourceGet requests the current source.
func (c *Client) SourceGet(ctx context.Context) error {
	return c.Command(ctx, "get_current_profile")
}

// SourceSet selects the source with the given index, starting at 0.
func (c *Client) SourceSet(ctx context.Context, index int) error {
	return c.Command(ctx, "profile "+strconv.Itoa(index))
}

// SourceSetByName selects the source whose catalog name matches exactly.
// Returns ErrUnknownCatalogName when no source carries that name.
func (c *Client) SourceSetByName(ctx context.Context, name string) error {
	c.stateMu.RLock()
	index, ok := c.st.SourceIndexByName(name)
	c.stateMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: source %q", ErrUnknownCatalogName, name)
	}
	return c.SourceSet(ctx, index)
}

// RemappingModeSet sets the speaker remapping mode.
func (c *Client) RemappingModeSet(ctx context.Context, mode RemappingMode) error {
	return c.Command(ctx, "remapping_mode "+string(mode))
}

// UpmixerSet sets the upmixer mode. The processor accepts upmixer modes
// through the remapping_mode command.
func (c *Client) UpmixerSet(ctx context.Context, mode UpmixerMode) error {
	return c.Command(ctx, "remapping_mode "+string(mode))
}

// PageAdjust changes the menu page shown on the GUI by delta pages.
func (c *Client) PageAdjust(ctx context.Context, delta int) error {
	return c.Command(ctx, "page_adjust "+strconv.Itoa(delta))
}

// PageUp moves the GUI up one menu page.
func (c *Client) PageUp(ctx context.Context) error { return c.PageAdjust(ctx, 1) }

// PageDown moves the GUI down one menu page.
func (c *Client) PageDown(ctx context.Context) error { return c.PageAdjust(ctx, -1) }

// PowerOff shuts the processor down.
func (c *Client) PowerOff(ctx context.Context) error {
	return c.Command(ctx, "power_off_SECURED_FHZMCH48FE")
}

// Bye asks the processor to close the session.
func (c *Client) Bye(ctx context.Context) error {
	return c.Command(ctx, "bye")
}

func boolArg(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
