// Package config loads groovectl settings from file and environment
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/james-see/groovectl/pkg/tempo"
)

// Config holds application configuration
type Config struct {
	Tempo  TempoConfig
	Swing  SwingConfig
	Server ServerConfig
	MIDI   MIDIConfig
	Log    LogConfig
}

// TempoConfig holds startup tempo settings
type TempoConfig struct {
	Initial      float64
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// SwingConfig holds startup swing settings
type SwingConfig struct {
	Initial float64
	Preset  string
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port int
}

// MIDIConfig holds MIDI tap input settings
type MIDIConfig struct {
	TapPort    string `mapstructure:"tap_port"`
	TapChannel int    `mapstructure:"tap_channel"` // -1 listens on every channel
	ApplyTaps  bool   `mapstructure:"apply_taps"`
}

// Input returns the MIDI input to take taps from: override when set, else tap_port
func (m MIDIConfig) Input(override string) (string, error) {
	port := m.TapPort
	if override != "" {
		port = override
	}
	if port == "" {
		return "", fmt.Errorf("no MIDI input port given; use --midi-port or midi.tap_port (see 'groovectl ports')")
	}
	return port, nil
}

// Channel returns the tap channel, override replacing tap_channel when set
func (m MIDIConfig) Channel(override int, set bool) (int, error) {
	channel := m.TapChannel
	if set {
		channel = override
	}
	if channel < -1 || channel > 15 {
		return 0, fmt.Errorf("midi channel must be -1..15, got %d", channel)
	}
	return channel, nil
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads configuration from an optional TOML file and the environment.
// path overrides the file location; otherwise $GROOVECTL_CONFIG or
// ~/.config/groovectl/config.toml is used. Env overrides use prefix GROOVECTL_.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("tempo.initial", tempo.DefaultTempo)
	v.SetDefault("tempo.tick_interval", tempo.TickInterval)
	v.SetDefault("swing.initial", tempo.MinSwing)
	v.SetDefault("swing.preset", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("midi.tap_port", "")
	v.SetDefault("midi.tap_channel", -1)
	v.SetDefault("midi.apply_taps", true)
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("GROOVECTL_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "groovectl"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GROOVECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// an explicit path must exist; the default location is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that cannot be clamped silently
func (c Config) Validate() error {
	if err := tempo.TempoValidationError(c.Tempo.Initial); err != nil {
		return fmt.Errorf("tempo.initial: %w", err)
	}
	if err := tempo.SwingValidationError(c.Swing.Initial); err != nil {
		return fmt.Errorf("swing.initial: %w", err)
	}
	if c.Swing.Preset != "" {
		if _, ok := tempo.GroovePreset(c.Swing.Preset); !ok {
			if _, ok := tempo.MPCSwingPreset(c.Swing.Preset); !ok {
				return fmt.Errorf("swing.preset: unknown preset %q", c.Swing.Preset)
			}
		}
	}
	if c.Tempo.TickInterval <= 0 {
		return fmt.Errorf("tempo.tick_interval must be positive, got %s", c.Tempo.TickInterval)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.MIDI.TapChannel < -1 || c.MIDI.TapChannel > 15 {
		return fmt.Errorf("midi.tap_channel must be -1..15, got %d", c.MIDI.TapChannel)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ControllerOptions translates the startup settings into controller options
func (c Config) ControllerOptions(logger *slog.Logger) []tempo.Option {
	swing := c.Swing.Initial
	if v, ok := tempo.GroovePreset(c.Swing.Preset); ok {
		swing = v
	} else if v, ok := tempo.MPCSwingPreset(c.Swing.Preset); ok {
		swing = v
	}
	return []tempo.Option{
		tempo.WithLogger(logger),
		tempo.WithInitialTempo(c.Tempo.Initial),
		tempo.WithInitialSwing(swing),
		tempo.WithTickInterval(c.Tempo.TickInterval),
	}
}

// ParseLevel maps a level name onto a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the text logger used by every command
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
