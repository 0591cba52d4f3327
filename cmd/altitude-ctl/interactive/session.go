// Package interactive provides the interactive command prompt for
// altitude-ctl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/altitude-protocol/altitude-go/pkg/bridge"
	"github.com/altitude-protocol/altitude-go/pkg/client"
	"github.com/altitude-protocol/altitude-go/pkg/state"
)

// commandTimeout bounds each interactive command.
const commandTimeout = 5 * time.Second

// Session handles the interactive prompt.
type Session struct {
	c  *client.Client
	rl *readline.Instance
}

// New creates a Session with its readline instance.
func New(c *client.Client) (*Session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "altitude> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Session{c: c, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output to avoid interfering with input.
func (s *Session) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Session) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "status":
			s.cmdStatus()

		case "state":
			s.cmdState()

		case "sources":
			s.cmdSources()

		case "presets":
			s.cmdPresets()

		case "raw":
			s.cmdRaw(ctx, input)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			s.cmdAutomation(ctx, input)
		}
	}
}

func (s *Session) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `
Commands:
  status                    Show connection status
  state                     Show full device state
  sources                   List available sources
  presets                   List available presets
  raw <line>                Send a raw protocol line and wait for OK/ERROR
  quit                      Exit

Automation commands (examples):
  volume_set -40.5          Set volume in dB
  volume_up / volume_down   Step volume by 0.5 dB
  mute_toggle               Toggle mute
  dim_on / dim_off          Control dim
  preset_set 2              Load preset 2
  source_set 1              Select source 1
  source_set_by_name "Apple TV"
  remapping_mode_set 3D
  upmixer_set dolby
`)
}

func (s *Session) cmdStatus() {
	out := s.rl.Stdout()
	fmt.Fprintf(out, "Connection: %s\n", s.c.ConnectionState())
	fmt.Fprintf(out, "Quirk profile: %s\n", s.c.Profile())
	if n := s.c.UnknownMessageCount(); n > 0 {
		fmt.Fprintf(out, "Unknown messages: %d\n", n)
		for _, line := range s.c.RecentUnknownMessages() {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

func (s *Session) cmdState() {
	out := s.rl.Stdout()
	snap := s.c.Snapshot()

	fmt.Fprintf(out, "Synced: %v\n", snap.Synced)
	printField(out, "Version", snap.Version)
	printField(out, "ID", snap.ID)
	printField(out, "Volume (dB)", snap.Volume)
	printField(out, "Mute", snap.Mute)
	printField(out, "Dim", snap.Dim)
	printField(out, "Bypass", snap.Bypass)
	printField(out, "Preset", snap.Preset)
	printField(out, "Source", snap.Source)
	printField(out, "Sampling rate", snap.SamplingRate)
	printField(out, "Audiosync", snap.Audiosync)
	printField(out, "Decoder", snap.Decoder)
	printField(out, "Upmixer", snap.Upmixer)
	printField(out, "Source format", snap.SourceFormat)
	printField(out, "Preset index", snap.CurrentPresetIndex)
	printField(out, "Source index", snap.CurrentSourceIndex)
	if len(snap.Features) > 0 {
		features := append([]string(nil), snap.Features...)
		sort.Strings(features)
		fmt.Fprintf(out, "Features: %s\n", strings.Join(features, ", "))
	}
}

// printField prints a labelled value, skipping fields that are still unknown.
func printField[T any](w io.Writer, label string, value *T) {
	if value == nil {
		return
	}
	fmt.Fprintf(w, "%s: %v\n", label, *value)
}

func (s *Session) cmdSources() {
	s.printCatalog("Sources", s.c.Snapshot().Sources, s.c.Snapshot().CurrentSourceIndex)
}

func (s *Session) cmdPresets() {
	s.printCatalog("Presets", s.c.Snapshot().Presets, s.c.Snapshot().CurrentPresetIndex)
}

func (s *Session) printCatalog(title string, entries []state.CatalogEntry, current *int) {
	out := s.rl.Stdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "%s: none known yet\n", title)
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, e := range entries {
		marker := "  "
		if current != nil && *current == e.Index {
			marker = "* "
		}
		fmt.Fprintf(out, "%s%3d  %s\n", marker, e.Index, e.Name)
	}
}

func (s *Session) cmdRaw(ctx context.Context, input string) {
	line := strings.TrimSpace(strings.TrimPrefix(input, "raw"))
	if line == "" {
		fmt.Fprintln(s.rl.Stdout(), "Usage: raw <protocol line>")
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := s.c.CommandAck(cmdCtx, line); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

func (s *Session) cmdAutomation(ctx context.Context, input string) {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := bridge.Execute(cmdCtx, s.c, input); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
	}
}
