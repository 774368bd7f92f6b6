// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the analysis engine.
const (
	// Audio capture defaults
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultSampleRate      = 48000       // Rate the analysis constants are tuned for
	DefaultFramesPerBuffer = 1024        // One AudioChunk
	DefaultChannels        = 1           // Mono; stereo is downmixed in capture
	DefaultLowLatency      = false
	DefaultCaptureQueue    = 1   // Chunks buffered between capture and analysis
	DefaultGateThreshold   = 0.0 // Noise gate peak threshold; 0 disables the gate

	// Analysis defaults
	DefaultWindowChunks   = 4 // AnalysisWindow = 4 chunks
	DefaultFFTWindow      = "Hann"
	DefaultPitchThreshold = 0.7  // Minimum clarity for a voiced estimate
	DefaultMinPitchHz     = 50   // Lowest fundamental searched
	DefaultMaxPitchHz     = 1600 // Highest fundamental searched
	DefaultSilenceRMS     = 1e-4 // Below this the window is treated as silent
	DefaultHarmonicScale  = 0.15 // gain = ln(magnitude) * scale
	DefaultDecimation     = 2    // Formant stage resampling factor
	DefaultHighPassHz     = 50   // Formant stage DC/rumble cut-off
	DefaultLPCOrder       = 22   // All-pole model order
	DefaultEnvelopePoints = 512  // FormantEnvelope length
	DefaultMaxBandwidthHz = 350  // Widest pole reported as a formant
	DefaultHistoryLength  = 256  // FrequencyHistory capacity
	DefaultInputGainDb    = 0.0

	// Transport defaults
	DefaultOSCEnabled       = true
	DefaultOSCTargetAddress = "127.0.0.1:9000"
	DefaultOSCPrefix        = "/avatar/parameters/"
	DefaultWebSocketEnabled = false
	DefaultWebSocketAddress = ":8080"
	DefaultStopTimeout      = 2 * time.Second

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxCaptureQueue = 4
	MinLPCOrder     = 2
	MaxLPCOrder     = 64
	MinHighPassHz   = 1
	MaxInputGainDb  = 60
	MinInputGainDb  = -60
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug mode (forces debug log level).
	LogLevel  string          `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // A one-off command to execute instead of running a session ("list").
	Audio     AudioConfig     `yaml:"audio"`             // Capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Analysis pipeline tuning.
	Transport TransportConfig `yaml:"transport"`         // Outbound parameter and snapshot transports.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz; 0 uses the device default.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // AudioChunk length in frames.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low input latency.
	InputChannels   int     `yaml:"input_channels"`    // Channels captured before downmixing.
	CaptureQueue    int     `yaml:"capture_queue"`     // Bounded capture channel capacity.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Chunks peaking below this are silenced.
}

// AnalysisConfig holds the tunables of the analysis pipeline.
type AnalysisConfig struct {
	WindowChunks   int     `yaml:"window_chunks"`    // AnalysisWindow length in chunks.
	FFTWindow      string  `yaml:"fft_window"`       // Spectrum window function name.
	PitchThreshold float64 `yaml:"pitch_threshold"`  // Clarity threshold for voicing.
	MinPitchHz     float64 `yaml:"min_pitch_hz"`     // Lower bound of the pitch search.
	MaxPitchHz     float64 `yaml:"max_pitch_hz"`     // Upper bound of the pitch search.
	SilenceRMS     float64 `yaml:"silence_rms"`      // RMS under which a window is unvoiced.
	HarmonicScale  float64 `yaml:"harmonic_scale"`   // Log-magnitude to gain scale.
	Decimation     int     `yaml:"decimation"`       // Formant resampling factor.
	HighPassHz     float64 `yaml:"highpass_hz"`      // Formant high-pass cut-off.
	LPCOrder       int     `yaml:"lpc_order"`        // All-pole model order.
	EnvelopePoints int     `yaml:"envelope_points"`  // Envelope sample count.
	MaxBandwidthHz float64 `yaml:"max_bandwidth_hz"` // Widest formant pole bandwidth.
	HistoryLength  int     `yaml:"history_length"`   // Pitch history capacity.
	InputGainDb    float64 `yaml:"input_gain_db"`    // Initial input gain.
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	OSCEnabled       bool          `yaml:"osc_enabled"`        // Send one OSC bundle per cycle.
	OSCTargetAddress string        `yaml:"osc_target_address"` // host:port of the OSC receiver.
	OSCPrefix        string        `yaml:"osc_prefix"`         // Address prefix for every parameter.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve snapshots to renderers.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address of the snapshot feed.
	LogParameters    bool          `yaml:"log_parameters"`     // Log every outbound bundle at debug level.
	StopTimeout      time.Duration `yaml:"stop_timeout"`       // Bounded wait when joining the analysis loop.
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			CaptureQueue:    DefaultCaptureQueue,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			WindowChunks:   DefaultWindowChunks,
			FFTWindow:      DefaultFFTWindow,
			PitchThreshold: DefaultPitchThreshold,
			MinPitchHz:     DefaultMinPitchHz,
			MaxPitchHz:     DefaultMaxPitchHz,
			SilenceRMS:     DefaultSilenceRMS,
			HarmonicScale:  DefaultHarmonicScale,
			Decimation:     DefaultDecimation,
			HighPassHz:     DefaultHighPassHz,
			LPCOrder:       DefaultLPCOrder,
			EnvelopePoints: DefaultEnvelopePoints,
			MaxBandwidthHz: DefaultMaxBandwidthHz,
			HistoryLength:  DefaultHistoryLength,
			InputGainDb:    DefaultInputGainDb,
		},
		Transport: TransportConfig{
			OSCEnabled:       DefaultOSCEnabled,
			OSCTargetAddress: DefaultOSCTargetAddress,
			OSCPrefix:        DefaultOSCPrefix,
			WebSocketEnabled: DefaultWebSocketEnabled,
			WebSocketAddress: DefaultWebSocketAddress,
			StopTimeout:      DefaultStopTimeout,
		},
	}
}

// WindowLength returns the AnalysisWindow length in samples.
func (c *Config) WindowLength() int {
	return c.Audio.FramesPerBuffer * c.Analysis.WindowChunks
}
