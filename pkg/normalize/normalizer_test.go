package normalize

import (
	"reflect"
	"testing"

	"github.com/altitude-protocol/altitude-go/pkg/canonical"
	"github.com/altitude-protocol/altitude-go/pkg/protocol"
	"github.com/altitude-protocol/altitude-go/pkg/quirks"
)

func normalizeLine(t *testing.T, n *Normalizer, line string) []canonical.Event {
	t.Helper()
	return n.Normalize(protocol.Parse(line))
}

func TestNormalizeScalars(t *testing.T) {
	tests := []struct {
		name string
		line string
		want canonical.Event
	}{
		{"Volume", "VOLUME -20.5", canonical.SetVolume{Volume: -20.5}},
		{"Mute", "MUTE 1", canonical.SetMute{State: true}},
		{"Dim", "DIM 0", canonical.SetDim{State: false}},
		{"Bypass", "BYPASS 1", canonical.SetBypass{State: true}},
		{"SamplingRate", "SRATE 44100", canonical.SetSamplingRate{Rate: 44100}},
		{"Audiosync", "AUDIOSYNC Master", canonical.SetAudiosync{Mode: "Master"}},
		{"AudiosyncStatus", "AUDIOSYNC STATUS 0", canonical.SetAudiosyncStatus{Synchronized: false}},
		{"SourceFormat", "CURRENT_SOURCE_FORMAT_NAME Atmos", canonical.SetSourceFormat{Format: "Atmos"}},
		{
			"Decoder",
			"DECODER NONAUDIO 0 PLAYABLE 1 DECODER TrueHD UPMIXER auto",
			canonical.SetDecoder{Decoder: "Dolby TrueHD", Upmixer: "auto"},
		},
		{
			"Welcome",
			"Welcome on Trinnov Optimizer (Version 4.3.2, ID 98765)",
			canonical.SetWelcome{Version: "4.3.2", ID: "98765"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLine(t, New(), tt.line)
			if len(got) != 1 || !reflect.DeepEqual(got[0], tt.want) {
				t.Errorf("Normalize(%q) = %#v, want [%#v]", tt.line, got, tt.want)
			}
		})
	}
}

func TestNormalizeQuality(t *testing.T) {
	tests := []struct {
		name string
		line string
		want canonical.Event
	}{
		{"CurrentProfileLabeled", "CURRENT_PROFILE 3", canonical.SetCurrentSource{Index: 3, Quality: canonical.QualityLabeled}},
		{"ProfileIndexOnly", "PROFILE 3", canonical.SetCurrentSource{Index: 3, Quality: canonical.QualityIndexOnly}},
		{"OptSourceIndexOnly", "OPTSOURCE 3", canonical.SetCurrentSource{Index: 3, Quality: canonical.QualityIndexOnly}},
		{"CurrentPreset", "CURRENT_PRESET -1", canonical.SetCurrentPreset{Index: -1, Quality: canonical.QualityLabeled}},
		{"ProfileLabel", "PROFILE 2: Apple TV", canonical.UpsertSource{Index: 2, Name: "Apple TV", Quality: canonical.QualityLabeled}},
		{"OptSourceLabel", "OPTSOURCE 2 Source 3", canonical.UpsertSource{Index: 2, Name: "Source 3", Quality: canonical.QualityIndexOnly}},
		{"PresetLabel", "LABEL 0: Flat", canonical.UpsertPreset{Index: 0, Name: "Flat", Quality: canonical.QualityLabeled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLine(t, New(), tt.line)
			if len(got) != 1 || !reflect.DeepEqual(got[0], tt.want) {
				t.Errorf("Normalize(%q) = %#v, want [%#v]", tt.line, got, tt.want)
			}
		})
	}
}

func TestNormalizeQuirkProfile(t *testing.T) {
	t.Run("DefaultTreatsMetaPresetAsPreset", func(t *testing.T) {
		n := New()
		got := normalizeLine(t, n, "META_PRESET_LOADED 3")
		want := canonical.SetCurrentPreset{Index: 3, Quality: canonical.QualityLabeled}
		if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
			t.Errorf("Normalize = %#v, want [%#v]", got, want)
		}
	})

	t.Run("AltitudeCITreatsMetaPresetAsSource", func(t *testing.T) {
		n := New()
		normalizeLine(t, n, "IDENTS altitude_ci")
		if n.Profile() != quirks.ProfileAltitudeCI {
			t.Fatalf("Profile() = %v after IDENTS altitude_ci", n.Profile())
		}

		got := normalizeLine(t, n, "META_PRESET_LOADED 3")
		want := canonical.SetCurrentSource{Index: 3, Quality: canonical.QualityLabeled}
		if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
			t.Errorf("Normalize = %#v, want [%#v]", got, want)
		}
	})

	t.Run("ResetRestoresDefault", func(t *testing.T) {
		n := New()
		normalizeLine(t, n, "IDENTS altitude_ci")
		n.Reset()
		if n.Profile() != quirks.ProfileDefault {
			t.Errorf("Profile() = %v after Reset", n.Profile())
		}
	})
}

func TestNormalizeAcks(t *testing.T) {
	n := New()

	got := normalizeLine(t, n, "OK")
	if len(got) != 1 {
		t.Fatalf("Normalize(OK) = %#v", got)
	}
	if _, ok := got[0].(canonical.AckOK); !ok {
		t.Errorf("Normalize(OK) = %#v, want AckOK", got[0])
	}

	got = normalizeLine(t, n, "ERROR: bad command")
	want := canonical.AckRejected{Reason: "bad command"}
	if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Errorf("Normalize(ERROR) = %#v, want [%#v]", got, want)
	}
}

func TestNormalizeUnknownCounting(t *testing.T) {
	n := New()

	for i := 0; i < 25; i++ {
		events := normalizeLine(t, n, "SOMETHING_NOBODY_KNOWS")
		if len(events) != 0 {
			t.Fatalf("unknown message produced events: %#v", events)
		}
	}

	if n.UnknownCount() != 25 {
		t.Errorf("UnknownCount() = %d, want 25", n.UnknownCount())
	}
	if len(n.RecentUnknown()) != maxUnknownSamples {
		t.Errorf("RecentUnknown() kept %d samples, want %d", len(n.RecentUnknown()), maxUnknownSamples)
	}
}

func TestNormalizeNoStateMessages(t *testing.T) {
	n := New()
	for _, line := range []string{"BYE", "START_RUNNING", "SPEAKER_INFO 1 2.0 0.0 0.0"} {
		if events := normalizeLine(t, n, line); len(events) != 0 {
			t.Errorf("Normalize(%q) = %#v, want no events", line, events)
		}
	}
	if n.UnknownCount() != 0 {
		t.Errorf("UnknownCount() = %d, known messages must not count", n.UnknownCount())
	}
}
