package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/altitude-protocol/altitude-go/pkg/client"
)

// ErrEmptyCommand is returned when a command line contains no tokens.
var ErrEmptyCommand = errors.New("command cannot be empty")

// validCommands is the set of automation commands accepted by Execute.
var validCommands = map[string]struct{}{
	"acoustic_correction_off":    {},
	"acoustic_correction_on":     {},
	"acoustic_correction_toggle": {},
	"bypass_off":                 {},
	"bypass_on":                  {},
	"bypass_toggle":              {},
	"dim_off":                    {},
	"dim_on":                     {},
	"dim_toggle":                 {},
	"front_display_off":          {},
	"front_display_on":           {},
	"front_display_toggle":       {},
	"level_alignment_off":        {},
	"level_alignment_on":         {},
	"level_alignment_toggle":     {},
	"mute_off":                   {},
	"mute_on":                    {},
	"mute_toggle":                {},
	"optimization_off":           {},
	"optimization_on":            {},
	"optimization_toggle":        {},
	"page_down":                  {},
	"page_up":                    {},
	"preset_set":                 {},
	"remapping_mode_set":         {},
	"source_set":                 {},
	"source_set_by_name":         {},
	"time_alignment_off":         {},
	"time_alignment_on":          {},
	"time_alignment_toggle":      {},
	"upmixer_set":                {},
	"volume_adjust":              {},
	"volume_down":                {},
	"volume_percentage_set":      {},
	"volume_ramp":                {},
	"volume_set":                 {},
	"volume_up":                  {},
}

// ackRequired lists commands whose wire effect should be confirmed by the
// processor before the integration reports success.
var ackRequired = map[string]struct{}{
	"power_off":          {},
	"preset_set":         {},
	"source_set":         {},
	"source_set_by_name": {},
	"upmixer_set":        {},
}

// ParsedCommand is one tokenized automation command.
type ParsedCommand struct {
	Method string
	Args   []string
}

// IsValidCommand reports whether name is an accepted automation command.
func IsValidCommand(name string) bool {
	_, ok := validCommands[name]
	return ok
}

// RequiresAck reports whether the command should be confirmed with an
// acknowledgement before reporting success.
func RequiresAck(name string) bool {
	_, ok := ackRequired[name]
	return ok
}

// ParseCommand splits one command line with shell-like tokenization: tokens
// separated by whitespace, single or double quotes grouping tokens with
// embedded spaces.
func ParseCommand(line string) (ParsedCommand, error) {
	tokens, err := splitTokens(line)
	if err != nil {
		return ParsedCommand{}, err
	}
	if len(tokens) == 0 {
		return ParsedCommand{}, ErrEmptyCommand
	}
	return ParsedCommand{Method: tokens[0], Args: tokens[1:]}, nil
}

// splitTokens is a minimal shell-style splitter. Backslash escapes are not
// supported; quoting covers every name the processor produces.
func splitTokens(line string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false
	var quote byte

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				current.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inToken = true
		case ch == ' ' || ch == '\t':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteByte(ch)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %q quote", quote)
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// ParseUpmixerMode converts user input to an UpmixerMode.
func ParseUpmixerMode(value string) (client.UpmixerMode, error) {
	modes := []client.UpmixerMode{
		client.UpmixerAuto,
		client.UpmixerAuro3D,
		client.UpmixerDTS,
		client.UpmixerDolby,
		client.UpmixerNative,
		client.UpmixerLegacy,
		client.UpmixerUpmixOnNative,
	}
	lower := strings.ToLower(value)
	for _, mode := range modes {
		if string(mode) == lower {
			return mode, nil
		}
	}
	return "", fmt.Errorf("invalid upmixer mode %q, valid modes are: %s", value, joinModes(modes))
}

// ParseRemappingMode converts user input to a RemappingMode. Matching is
// case-insensitive; the wire casing is restored from the mode table.
func ParseRemappingMode(value string) (client.RemappingMode, error) {
	modes := []client.RemappingMode{
		client.RemappingNone,
		client.Remapping2D,
		client.Remapping3D,
		client.RemappingAutorotate,
		client.RemappingManual,
	}
	lower := strings.ToLower(value)
	for _, mode := range modes {
		if strings.ToLower(string(mode)) == lower {
			return mode, nil
		}
	}
	return "", fmt.Errorf("invalid remapping mode %q, valid modes are: %s", value, joinModes(modes))
}

func joinModes[T ~string](modes []T) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

// Execute parses and runs one automation command against the client.
func Execute(ctx context.Context, c *client.Client, line string) error {
	cmd, err := ParseCommand(line)
	if err != nil {
		return err
	}
	if !IsValidCommand(cmd.Method) {
		return fmt.Errorf("unknown command %q", cmd.Method)
	}

	switch cmd.Method {
	case "acoustic_correction_off":
		return c.AcousticCorrectionSet(ctx, false)
	case "acoustic_correction_on":
		return c.AcousticCorrectionSet(ctx, true)
	case "acoustic_correction_toggle":
		return c.AcousticCorrectionToggle(ctx)
	case "bypass_off":
		return c.BypassOff(ctx)
	case "bypass_on":
		return c.BypassOn(ctx)
	case "bypass_toggle":
		return c.BypassToggle(ctx)
	case "dim_off":
		return c.DimOff(ctx)
	case "dim_on":
		return c.DimOn(ctx)
	case "dim_toggle":
		return c.DimToggle(ctx)
	case "front_display_off":
		return c.FrontDisplayOff(ctx)
	case "front_display_on":
		return c.FrontDisplayOn(ctx)
	case "front_display_toggle":
		return c.FrontDisplayToggle(ctx)
	case "level_alignment_off":
		return c.LevelAlignmentSet(ctx, false)
	case "level_alignment_on":
		return c.LevelAlignmentSet(ctx, true)
	case "level_alignment_toggle":
		return c.LevelAlignmentToggle(ctx)
	case "mute_off":
		return c.MuteOff(ctx)
	case "mute_on":
		return c.MuteOn(ctx)
	case "mute_toggle":
		return c.MuteToggle(ctx)
	case "optimization_off":
		return c.QuickOptimizedSet(ctx, false)
	case "optimization_on":
		return c.QuickOptimizedSet(ctx, true)
	case "optimization_toggle":
		return c.QuickOptimizedToggle(ctx)
	case "page_down":
		return c.PageDown(ctx)
	case "page_up":
		return c.PageUp(ctx)
	case "preset_set":
		index, err := intArg(cmd, 0)
		if err != nil {
			return err
		}
		return c.PresetSet(ctx, index)
	case "remapping_mode_set":
		arg, err := oneArg(cmd)
		if err != nil {
			return err
		}
		mode, err := ParseRemappingMode(arg)
		if err != nil {
			return err
		}
		return c.RemappingModeSet(ctx, mode)
	case "source_set":
		index, err := intArg(cmd, 0)
		if err != nil {
			return err
		}
		return c.SourceSet(ctx, index)
	case "source_set_by_name":
		if len(cmd.Args) == 0 {
			return fmt.Errorf("%s: missing source name", cmd.Method)
		}
		// Unquoted multi-word names arrive as separate tokens.
		return c.SourceSetByName(ctx, strings.Join(cmd.Args, " "))
	case "time_alignment_off":
		return c.TimeAlignmentSet(ctx, false)
	case "time_alignment_on":
		return c.TimeAlignmentSet(ctx, true)
	case "time_alignment_toggle":
		return c.TimeAlignmentToggle(ctx)
	case "upmixer_set":
		arg, err := oneArg(cmd)
		if err != nil {
			return err
		}
		mode, err := ParseUpmixerMode(arg)
		if err != nil {
			return err
		}
		return c.UpmixerSet(ctx, mode)
	case "volume_adjust":
		delta, err := floatArg(cmd, 0)
		if err != nil {
			return err
		}
		return c.VolumeAdjust(ctx, delta)
	case "volume_down":
		return c.VolumeDown(ctx)
	case "volume_percentage_set":
		pct, err := floatArg(cmd, 0)
		if err != nil {
			return err
		}
		return c.VolumePercentageSet(ctx, pct)
	case "volume_ramp":
		db, err := floatArg(cmd, 0)
		if err != nil {
			return err
		}
		duration, err := intArg(cmd, 1)
		if err != nil {
			return err
		}
		return c.VolumeRamp(ctx, db, duration)
	case "volume_set":
		db, err := floatArg(cmd, 0)
		if err != nil {
			return err
		}
		return c.VolumeSet(ctx, db)
	case "volume_up":
		return c.VolumeUp(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd.Method)
	}
}

func oneArg(cmd ParsedCommand) (string, error) {
	if len(cmd.Args) != 1 {
		return "", fmt.Errorf("%s: expected exactly one argument", cmd.Method)
	}
	return cmd.Args[0], nil
}

func intArg(cmd ParsedCommand, i int) (int, error) {
	if i >= len(cmd.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", cmd.Method, i+1)
	}
	v, err := strconv.Atoi(cmd.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", cmd.Method, i+1, err)
	}
	return v, nil
}

func floatArg(cmd ParsedCommand, i int) (float64, error) {
	if i >= len(cmd.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", cmd.Method, i+1)
	}
	v, err := strconv.ParseFloat(cmd.Args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", cmd.Method, i+1, err)
	}
	return v, nil
}
