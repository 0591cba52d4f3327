// Package config loads client configuration from YAML files.
//
// Zero values fall back to the client package defaults, so a minimal file
// only needs the processor's host.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/altitude-protocol/altitude-go/pkg/client"
	"github.com/altitude-protocol/altitude-go/pkg/connection"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or bare numbers, which are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the on-disk configuration.
type Config struct {
	// Host is the processor's address. Required.
	Host string `yaml:"host"`

	// Port is the automation port. Defaults to 44100.
	Port int `yaml:"port"`

	// ClientID is the identifier announced to the processor.
	ClientID string `yaml:"client_id"`

	ConnectTimeout Duration `yaml:"connect_timeout"`
	CommandTimeout Duration `yaml:"command_timeout"`
	AckTimeout     Duration `yaml:"ack_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
	Log       LogConfig       `yaml:"log"`
}

// ReconnectConfig customizes the reconnect behavior.
type ReconnectConfig struct {
	// Disabled turns automatic reconnection off.
	Disabled bool `yaml:"disabled"`

	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
	Jitter         float64  `yaml:"jitter"`
}

// LogConfig configures diagnostic and protocol logging.
type LogConfig struct {
	// Level is the slog level: debug, info, warn or error.
	Level string `yaml:"level"`

	// ProtocolFile, when set, records every protocol line and state
	// transition to this CBOR file.
	ProtocolFile string `yaml:"protocol_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("config: reconnect jitter %v out of range [0, 1]", c.Reconnect.Jitter)
	}
	if c.Reconnect.Multiplier != 0 && c.Reconnect.Multiplier <= 1 {
		return fmt.Errorf("config: reconnect multiplier must be greater than 1")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", l.Level)
	}
}

// ClientConfig maps the file configuration onto a client.Config. Logger and
// protocol log wiring stays with the caller.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		Host:             c.Host,
		Port:             c.Port,
		ClientID:         c.ClientID,
		ConnectTimeout:   c.ConnectTimeout.Std(),
		CommandTimeout:   c.CommandTimeout.Std(),
		AckTimeout:       c.AckTimeout.Std(),
		ReadTimeout:      c.ReadTimeout.Std(),
		DisableReconnect: c.Reconnect.Disabled,
		Backoff: connection.BackoffConfig{
			Initial:    c.Reconnect.InitialBackoff.Std(),
			Max:        c.Reconnect.MaxBackoff.Std(),
			Multiplier: c.Reconnect.Multiplier,
			Jitter:     c.Reconnect.Jitter,
		},
	}
}
