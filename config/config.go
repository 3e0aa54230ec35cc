// Package config loads the coordinator's process-level bootstrap settings.
// This is distinct from the profile (§4.3/§6, persisted as JSON): config
// covers things decided once at process start, not part of the mixing
// state a UI edits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration read from a YAML file at startup.
type Config struct {
	// ProfilePath is where the JSON profile is loaded from and persisted to.
	ProfilePath string `yaml:"profilePath"`

	// MeteringDefault is the initial value of the profile's metering toggle
	// when no profile file exists yet.
	MeteringDefault bool `yaml:"meteringDefault"`

	// DeviceDebounceMS overrides mixcore.DebounceWindow (§4.8); zero keeps
	// the built-in 500ms default.
	DeviceDebounceMS int `yaml:"deviceDebounceMs"`

	// StatusBufferDepth sizes each status-patch subscriber channel.
	StatusBufferDepth int `yaml:"statusBufferDepth"`

	// SaveIntervalSeconds overrides mixcore.SaveInterval; zero keeps the
	// built-in 5s default.
	SaveIntervalSeconds int `yaml:"saveIntervalSeconds"`

	// SampleRateHz is the audio sample rate the meter filters are sized for
	// (§4.1).
	SampleRateHz int `yaml:"sampleRateHz"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"logLevel"`

	// MIDI enables the optional hardware control-surface binder (§12).
	MIDI MIDIConfig `yaml:"midi"`
}

// MIDIConfig configures the optional MIDI control-surface listener.
type MIDIConfig struct {
	Enabled    bool `yaml:"enabled"`
	DeviceName string `yaml:"deviceName"`
}

// Default returns a Config with every field at its documented built-in
// default, used when no config file is present.
func Default() Config {
	return Config{
		ProfilePath:         "profile.json",
		MeteringDefault:     false,
		DeviceDebounceMS:    500,
		StatusBufferDepth:   32,
		SaveIntervalSeconds: 5,
		SampleRateHz:        48000,
		LogLevel:            "info",
	}
}

// SaveInterval returns the configured persistence tick as a time.Duration.
func (c Config) SaveInterval() time.Duration {
	return time.Duration(c.SaveIntervalSeconds) * time.Second
}

// DeviceDebounce returns the configured device-appearance debounce window.
func (c Config) DeviceDebounce() time.Duration {
	return time.Duration(c.DeviceDebounceMS) * time.Millisecond
}

// Load reads and parses a YAML config file at path, filling any field the
// file omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}
