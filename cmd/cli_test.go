// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"vocalosc/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inCleanDir keeps a developer's config.yaml from leaking into the test.
func inCleanDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestParseArgsDefaults(t *testing.T) {
	inCleanDir(t)

	opts, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, CommandRun, opts.Command)
	assert.False(t, opts.Monitor)
	assert.Equal(t, config.Default(), opts.Config)
}

func TestParseArgsCommands(t *testing.T) {
	inCleanDir(t)

	opts, err := ParseArgs([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, CommandList, opts.Command)

	opts, err = ParseArgs([]string{"select", "--monitor"})
	require.NoError(t, err)
	assert.Equal(t, CommandSelect, opts.Command)
	assert.True(t, opts.Monitor)
}

func TestParseArgsFlagsOverride(t *testing.T) {
	inCleanDir(t)

	opts, err := ParseArgs([]string{
		"-d", "3",
		"--sample-rate", "44100",
		"-b", "512",
		"--channels", "2",
		"--gate", "0.02",
		"--gain", "-6",
		"--osc-target", "192.168.1.20:9000",
		"--websocket", ":9090",
		"--log-parameters",
		"-v",
	})
	require.NoError(t, err)

	cfg := opts.Config
	assert.Equal(t, 3, cfg.Audio.InputDevice)
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	assert.Equal(t, 512, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, 2, cfg.Audio.InputChannels)
	assert.Equal(t, 0.02, cfg.Audio.GateThreshold)
	assert.Equal(t, -6.0, cfg.Analysis.InputGainDb)
	assert.Equal(t, "192.168.1.20:9000", cfg.Transport.OSCTargetAddress)
	assert.True(t, cfg.Transport.WebSocketEnabled)
	assert.Equal(t, ":9090", cfg.Transport.WebSocketAddress)
	assert.True(t, cfg.Transport.LogParameters)
	assert.True(t, cfg.Debug)
}

func TestParseArgsConfigFileThenFlags(t *testing.T) {
	dir := inCleanDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audio:
  sample_rate: 96000
  frames_per_buffer: 256
transport:
  osc_target_address: "10.0.0.5:9000"
`), 0644))

	opts, err := ParseArgs([]string{"--config", path, "-s", "44100", "--no-osc"})
	require.NoError(t, err)

	cfg := opts.Config
	// Flag wins over the file.
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	// Unset flags keep the file value.
	assert.Equal(t, 256, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, "10.0.0.5:9000", cfg.Transport.OSCTargetAddress)
	assert.False(t, cfg.Transport.OSCEnabled)
}

func TestParseArgsInvalid(t *testing.T) {
	inCleanDir(t)

	_, err := ParseArgs([]string{"--frames-per-buffer", "1000"})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = ParseArgs([]string{"--config", "missing.yaml"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"record"})
	assert.Error(t, err)
}

func TestParseArgsHelp(t *testing.T) {
	inCleanDir(t)

	// Cobra prints help to stdout; the run command is not executed.
	_, err := ParseArgs([]string{"--help"})
	assert.ErrorIs(t, err, ErrNoCommand)
}
