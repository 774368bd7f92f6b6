// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vocalosc/internal/analysis"
	applog "vocalosc/internal/log"
	"vocalosc/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure so callers can test for it.
var ErrInvalid = errors.New("invalid configuration")

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"vocalosc.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every value the analysis pipeline depends on. A zero sample
// rate is allowed and means "use the selected device's default rate".
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device must be >= %d, got %d", ErrInvalid, MinDeviceID, a.InputDevice)
	}
	if a.SampleRate != 0 && (a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate) {
		return fmt.Errorf("%w: audio.sample_rate %.0f outside [%d, %d]", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(a.FramesPerBuffer) || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer must be a power of 2 <= %d, got %d", ErrInvalid, MaxBufferFrames, a.FramesPerBuffer)
	}
	if a.InputChannels < 1 || a.InputChannels > 2 {
		return fmt.Errorf("%w: audio.input_channels must be 1 or 2, got %d", ErrInvalid, a.InputChannels)
	}
	if a.CaptureQueue < 1 || a.CaptureQueue > MaxCaptureQueue {
		return fmt.Errorf("%w: audio.capture_queue must be in [1, %d], got %d", ErrInvalid, MaxCaptureQueue, a.CaptureQueue)
	}
	if a.GateThreshold < 0 || a.GateThreshold >= 1 {
		return fmt.Errorf("%w: audio.gate_threshold must be in [0, 1), got %g", ErrInvalid, a.GateThreshold)
	}

	an := c.Analysis
	if an.WindowChunks < 1 {
		return fmt.Errorf("%w: analysis.window_chunks must be positive, got %d", ErrInvalid, an.WindowChunks)
	}
	if _, err := analysis.ParseWindowFunc(an.FFTWindow); err != nil {
		return fmt.Errorf("%w: analysis.fft_window: %v", ErrInvalid, err)
	}
	if an.PitchThreshold <= 0 || an.PitchThreshold >= 1 {
		return fmt.Errorf("%w: analysis.pitch_threshold must be in (0, 1), got %g", ErrInvalid, an.PitchThreshold)
	}
	if an.MinPitchHz <= 0 || an.MaxPitchHz <= an.MinPitchHz {
		return fmt.Errorf("%w: analysis pitch range [%g, %g] is empty", ErrInvalid, an.MinPitchHz, an.MaxPitchHz)
	}
	if an.HarmonicScale <= 0 {
		return fmt.Errorf("%w: analysis.harmonic_scale must be positive, got %g", ErrInvalid, an.HarmonicScale)
	}
	if an.Decimation < 1 {
		return fmt.Errorf("%w: analysis.decimation must be >= 1, got %d", ErrInvalid, an.Decimation)
	}
	if an.HighPassHz < MinHighPassHz {
		return fmt.Errorf("%w: analysis.highpass_hz must be >= %d, got %g", ErrInvalid, MinHighPassHz, an.HighPassHz)
	}
	if an.LPCOrder < MinLPCOrder || an.LPCOrder > MaxLPCOrder {
		return fmt.Errorf("%w: analysis.lpc_order must be in [%d, %d], got %d", ErrInvalid, MinLPCOrder, MaxLPCOrder, an.LPCOrder)
	}
	if decimated := c.WindowLength() / an.Decimation; decimated <= 2*an.LPCOrder {
		return fmt.Errorf("%w: decimated window (%d samples) too short for lpc_order %d", ErrInvalid, decimated, an.LPCOrder)
	}
	if an.EnvelopePoints < 2 {
		return fmt.Errorf("%w: analysis.envelope_points must be >= 2, got %d", ErrInvalid, an.EnvelopePoints)
	}
	if an.MaxBandwidthHz <= 0 {
		return fmt.Errorf("%w: analysis.max_bandwidth_hz must be positive, got %g", ErrInvalid, an.MaxBandwidthHz)
	}
	if an.HistoryLength < 1 {
		return fmt.Errorf("%w: analysis.history_length must be positive, got %d", ErrInvalid, an.HistoryLength)
	}
	if an.InputGainDb < MinInputGainDb || an.InputGainDb > MaxInputGainDb {
		return fmt.Errorf("%w: analysis.input_gain_db must be in [%d, %d], got %g", ErrInvalid, MinInputGainDb, MaxInputGainDb, an.InputGainDb)
	}

	tr := c.Transport
	if tr.OSCEnabled {
		if !strings.Contains(tr.OSCTargetAddress, ":") {
			return fmt.Errorf("%w: transport.osc_target_address %q appears invalid (missing port?)", ErrInvalid, tr.OSCTargetAddress)
		}
		if !strings.HasPrefix(tr.OSCPrefix, "/") {
			return fmt.Errorf("%w: transport.osc_prefix %q must start with '/'", ErrInvalid, tr.OSCPrefix)
		}
	}
	if tr.WebSocketEnabled && tr.WebSocketAddress == "" {
		return fmt.Errorf("%w: transport.websocket_address must be set when the feed is enabled", ErrInvalid)
	}
	if tr.StopTimeout <= 0 {
		return fmt.Errorf("%w: transport.stop_timeout must be positive, got %s", ErrInvalid, tr.StopTimeout)
	}

	return nil
}

// applyEnvOverrides lets ENV_* variables replace file or default values.
// Unparseable values are ignored and the previous value is kept.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("configuration: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_{AUDIO} overrides.

	// ENV_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = iVal
			applog.Debugf("configuration: Overriding audio.input_device from env: %d", iVal)
		}
	}
	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = fVal
			applog.Debugf("configuration: Overriding audio.sample_rate from env: %g", fVal)
		}
	}
	// ENV_INPUT_GAIN_DB
	if val, ok := os.LookupEnv("ENV_INPUT_GAIN_DB"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Analysis.InputGainDb = fVal
			applog.Debugf("configuration: Overriding analysis.input_gain_db from env: %g", fVal)
		}
	}

	// ENV_{TRANSPORT} overrides.

	// ENV_OSC_ENABLED
	if val, ok := os.LookupEnv("ENV_OSC_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.OSCEnabled = bVal
			applog.Debugf("configuration: Overriding transport.osc_enabled from env: %v", bVal)
		}
	}
	// ENV_OSC_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_OSC_TARGET_ADDRESS"); ok {
		c.Transport.OSCTargetAddress = val
		applog.Debugf("configuration: Overriding transport.osc_target_address from env: %s", val)
	}
	// ENV_WEBSOCKET_ENABLED
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Debugf("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WEBSOCKET_ADDRESS
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Debugf("configuration: Overriding transport.websocket_address from env: %s", val)
	}
	// ENV_STOP_TIMEOUT
	if val, ok := os.LookupEnv("ENV_STOP_TIMEOUT"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.StopTimeout = dur
			applog.Debugf("configuration: Overriding transport.stop_timeout from env: %s", dur)
		}
	}
}
