package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixerd.yaml")
	yaml := "profilePath: /tmp/profile.json\nlogLevel: debug\nmidi:\n  enabled: true\n  deviceName: Faderfox\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/profile.json", cfg.ProfilePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.MIDI.Enabled)
	assert.Equal(t, "Faderfox", cfg.MIDI.DeviceName)
	// Untouched fields keep their Default() values.
	assert.Equal(t, 500, cfg.DeviceDebounceMS)
	assert.Equal(t, 48000, cfg.SampleRateHz)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5*time.Second, cfg.SaveInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.DeviceDebounce())
}
