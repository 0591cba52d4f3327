package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// AudioFormatNames maps the device's short decoder tags to the display
// names integrations expect.
var AudioFormatNames = map[string]string{
	"ATMOS TrueHD": "Dolby Atmos/Dolby TrueHD",
	"DTS:X MA":     "DTS:X Master Audio",
	"DTS-HD MA":    "DTS-HD Master Audio",
	"ATMOS DD+":    "Dolby Atmos/Dolby Digital Plus",
	"DD":           "Dolby Digital",
	"TrueHD":       "Dolby TrueHD",
}

type rule struct {
	pattern *regexp.Regexp
	build   func(groups []string) Message
}

// Rule order matters where prefixes overlap: "AUDIOSYNC STATUS" must be
// tried before "AUDIOSYNC", labeled "PROFILE n: name" before index-only
// "PROFILE n".
var rules = []rule{
	{regexp.MustCompile(`^AUDIOSYNC STATUS\s(0|1)$`), func(g []string) Message {
		return AudiosyncStatusMessage{Synchronized: g[1] == "1"}
	}},
	{regexp.MustCompile(`^AUDIOSYNC\s(.*)$`), func(g []string) Message {
		return AudiosyncMessage{Mode: g[1]}
	}},
	{regexp.MustCompile(`^BYE$`), func([]string) Message {
		return ByeMessage{}
	}},
	{regexp.MustCompile(`^BYPASS\s(0|1)$`), func(g []string) Message {
		return BypassMessage{State: g[1] == "1"}
	}},
	{regexp.MustCompile(`^CURRENT_PRESET\s(-?\d+)$`), func(g []string) Message {
		return CurrentPresetMessage{Index: mustInt(g[1])}
	}},
	{regexp.MustCompile(`^CURRENT_PROFILE\s(-?\d+)$`), func(g []string) Message {
		return CurrentSourceMessage{Index: mustInt(g[1]), Origin: OriginCurrentProfile}
	}},
	{regexp.MustCompile(`^CURRENT_SOURCE_FORMAT_NAME\s(.*)$`), func(g []string) Message {
		return SourceFormatMessage{Format: g[1]}
	}},
	{regexp.MustCompile(`^DECODER NONAUDIO (\d+) PLAYABLE (\d+) DECODER (.*) UPMIXER (.*)$`), func(g []string) Message {
		decoder := g[3]
		if name, ok := AudioFormatNames[decoder]; ok {
			decoder = name
		}
		return DecoderMessage{
			NonAudio: g[1] != "0",
			Playable: g[2] != "0",
			Decoder:  decoder,
			Upmixer:  g[4],
		}
	}},
	{regexp.MustCompile(`^DIM\s(-?\d+)$`), func(g []string) Message {
		return DimMessage{State: g[1] != "0"}
	}},
	{regexp.MustCompile(`^ERROR: (.*)$`), func(g []string) Message {
		return ErrorMessage{Error: g[1]}
	}},
	{regexp.MustCompile(`^IDENTS\s+(.*)$`), func(g []string) Message {
		return IdentsMessage{Features: strings.Fields(g[1])}
	}},
	{regexp.MustCompile(`^LABEL\s(-?\d+): (.*)$`), func(g []string) Message {
		return PresetMessage{Index: mustInt(g[1]), Name: g[2]}
	}},
	{regexp.MustCompile(`^LABELS_CLEAR$`), func([]string) Message {
		return PresetsClearMessage{}
	}},
	{regexp.MustCompile(`^META_PRESET_LOADED\s(-?\d+)$`), func(g []string) Message {
		return MetaPresetLoadedMessage{Index: mustInt(g[1])}
	}},
	{regexp.MustCompile(`^MUTE\s(0|1)$`), func(g []string) Message {
		return MuteMessage{State: g[1] == "1"}
	}},
	{regexp.MustCompile(`^OK$`), func([]string) Message {
		return OKMessage{}
	}},
	{regexp.MustCompile(`^OPTSOURCE\s(-?\d+)(?:\s+(.*?))?(?:\s+OK)?$`), func(g []string) Message {
		index := mustInt(g[1])
		name := strings.TrimSpace(g[2])
		if name == "" || name == "OK" {
			return CurrentSourceMessage{Index: index, Origin: OriginOptSource}
		}
		return SourceMessage{Index: index, Name: name, Origin: OriginOptSource}
	}},
	{regexp.MustCompile(`^PROFILE\s(-?\d+): (.*)$`), func(g []string) Message {
		return SourceMessage{Index: mustInt(g[1]), Name: g[2], Origin: OriginProfile}
	}},
	{regexp.MustCompile(`^PROFILE\s(-?\d+)$`), func(g []string) Message {
		return CurrentSourceMessage{Index: mustInt(g[1]), Origin: OriginProfile}
	}},
	{regexp.MustCompile(`^PROFILES_CLEAR$`), func([]string) Message {
		return SourcesClearMessage{}
	}},
	{regexp.MustCompile(`^SOURCES_CHANGED$`), func([]string) Message {
		return SourcesChangedMessage{}
	}},
	{regexp.MustCompile(`^SPEAKER_INFO\s(\d+)\s(-?\d+(?:\.\d+)?)\s(-?\d+(?:\.\d+)?)\s(-?\d+(?:\.\d+)?)$`), func(g []string) Message {
		return SpeakerInfoMessage{
			Speaker: mustInt(g[1]),
			Radius:  mustFloat(g[2]),
			Theta:   mustFloat(g[3]),
			Phi:     mustFloat(g[4]),
		}
	}},
	{regexp.MustCompile(`^SRATE\s(\d+)$`), func(g []string) Message {
		return SamplingRateMessage{Rate: mustInt(g[1])}
	}},
	{regexp.MustCompile(`^START_RUNNING$`), func([]string) Message {
		return StartRunningMessage{}
	}},
	{regexp.MustCompile(`^VOLUME\s(-?\d+(?:\.\d+)?)$`), func(g []string) Message {
		return VolumeMessage{Volume: mustFloat(g[1])}
	}},
	{regexp.MustCompile(`^Welcome on Trinnov Optimizer \(Version (\S+), ID (\d+)\)$`), func(g []string) Message {
		return WelcomeMessage{Version: g[1], ID: g[2]}
	}},
}

// Parse converts one protocol line into a Message. It never fails: a line
// that matches no rule yields an UnknownMessage with the raw text. Trailing
// whitespace and line terminators are stripped before matching.
func Parse(line string) Message {
	line = strings.TrimRight(line, "\r\n \t")
	for _, r := range rules {
		if g := r.pattern.FindStringSubmatch(line); g != nil {
			return r.build(g)
		}
	}
	return UnknownMessage{Raw: line}
}

// mustInt converts a digit group already validated by a rule pattern.
func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
