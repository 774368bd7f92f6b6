// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"vocalosc/internal/config"
	"vocalosc/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandRun    = ""
	CommandList   = "list"
	CommandSelect = "select"
)

// ErrNoCommand is returned when parsing only printed help or version text.
var ErrNoCommand = errors.New("no command to run")

// Options is the outcome of argument parsing.
type Options struct {
	Config  *config.Config
	Command string
	Monitor bool // Show the live terminal monitor while running.
}

// flagValues holds raw flag values; only flags the user set are applied
// on top of the loaded configuration.
type flagValues struct {
	configPath      string
	deviceID        int
	sampleRate      float64
	framesPerBuffer int
	channels        int
	lowLatency      bool
	gate            float64
	gainDb          float64
	oscTarget       string
	oscPrefix       string
	noOSC           bool
	websocket       string
	logParameters   bool
	logLevel        string
	verbose         bool
}

// ParseArgs parses args (without the program name) into Options. The
// configuration file named by --config, or the default search path, is
// loaded first and flags override it.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var flags flagValues

	resolve := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		flags.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		options.Config = cfg
		options.Command = command
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolve(cmd, CommandRun)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolve(cmd, CommandList)
		},
	}
	rootCmd.AddCommand(listCmd)

	// Select command
	selectCmd := &cobra.Command{
		Use:   "select",
		Short: "Pick an input device interactively, then start analysing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolve(cmd, CommandSelect)
		},
	}
	rootCmd.AddCommand(selectCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&flags.configPath, "config", "f", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./vocalosc.yaml)")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz); 0 uses the device default")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (one analysis chunk)")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture before downmixing (1=mono, 2=stereo)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.Float64Var(&flags.gate, "gate", config.DefaultGateThreshold,
		"Noise gate peak threshold in [0, 1); 0 disables the gate")

	// Analysis Configuration
	pf.Float64VarP(&flags.gainDb, "gain", "g", config.DefaultInputGainDb,
		"Input gain in dB applied before analysis")

	// Transport Configuration
	pf.StringVarP(&flags.oscTarget, "osc-target", "t", config.DefaultOSCTargetAddress,
		"host:port that receives the OSC parameter bundles")
	pf.StringVar(&flags.oscPrefix, "osc-prefix", config.DefaultOSCPrefix,
		"Address prefix of every OSC parameter")
	pf.BoolVar(&flags.noOSC, "no-osc", false,
		"Disable the OSC output")
	pf.StringVarP(&flags.websocket, "websocket", "w", "",
		"Serve snapshots as JSON over WebSocket on this address (e.g. :8080)")
	pf.BoolVar(&flags.logParameters, "log-parameters", false,
		"Log every outbound parameter bundle at debug level")

	// Display Configuration
	pf.BoolVarP(&options.Monitor, "monitor", "m", false,
		"Show a live terminal monitor while running")

	// Debug Configuration
	pf.StringVar(&flags.logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")

	// Execute the CLI
	rootCmd.SetArgs(args)
	executed, err := rootCmd.ExecuteC()
	if err != nil {
		return nil, err
	}
	// --help and --version return without running a command.
	if options.Config == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCommand, executed.Name())
	}

	return options, nil
}

// apply copies every flag the user set into cfg.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateThreshold = f.gate
	}
	if changed("gain") {
		cfg.Analysis.InputGainDb = f.gainDb
	}
	if changed("osc-target") {
		cfg.Transport.OSCTargetAddress = f.oscTarget
	}
	if changed("osc-prefix") {
		cfg.Transport.OSCPrefix = f.oscPrefix
	}
	if changed("no-osc") && f.noOSC {
		cfg.Transport.OSCEnabled = false
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = f.websocket != ""
		cfg.Transport.WebSocketAddress = f.websocket
	}
	if changed("log-parameters") {
		cfg.Transport.LogParameters = f.logParameters
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
	}
}
