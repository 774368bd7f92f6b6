// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"vocalosc/cmd"
	"vocalosc/internal/audio"
	"vocalosc/internal/config"
	applog "vocalosc/internal/log"
	"vocalosc/internal/params"
	"vocalosc/internal/session"
	"vocalosc/internal/transport"
	"vocalosc/internal/transport/udp"
	"vocalosc/internal/tui"
	"vocalosc/pkg/build"
)

// monitorLogFile receives log output while the terminal monitor owns the screen.
const monitorLogFile = "vocalosc.log"

// main is the entry point for the vocal analysis application.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Initialize PortAudio
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the capture stream on the selected device
//   - Start the analysis session and its transports
//   - Optionally show the live monitor
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Join the analysis loop and release the device
//   - Close transports
func main() {
	if err := run(); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Missing link-time flags only mean a development build.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if errors.Is(err, cmd.ErrNoCommand) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg := opts.Config
	applyLogLevel(cfg)

	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer audio.Terminate()

	switch opts.Command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandSelect:
		sel, ok, err := tui.RunDevicePicker(audio.InputDevices)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := audio.InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return err
	}

	gate := audio.NewGate(cfg.Audio.GateThreshold)
	capturer, err := audio.NewCapturer(audio.CaptureConfig{
		Device:          device,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		Channels:        cfg.Audio.InputChannels,
		LowLatency:      cfg.Audio.LowLatency,
		QueueSize:       cfg.Audio.CaptureQueue,
		Gate:            gate,
	})
	if err != nil {
		return err
	}

	out, err := buildTransport(cfg)
	if err != nil {
		return closeAfter(err, capturer)
	}
	defer func() {
		if err := out.Close(); err != nil {
			applog.Errorf("Error closing transports: %v", err)
		}
	}()

	sess, err := session.New(cfg, capturer.SampleRate(), capturer, out)
	if err != nil {
		return closeAfter(err, capturer)
	}

	// CRITICAL: Start of real-time capture. Chunks queue up until the
	// session starts draining them.
	if err := capturer.Start(); err != nil {
		return closeAfter(err, capturer)
	}
	if err := sess.Start(ctx); err != nil {
		return closeAfter(err, capturer)
	}

	applog.Infof("Analysing '%s' at %.0f Hz", device.Name, capturer.SampleRate())
	if cfg.Transport.OSCEnabled {
		applog.Infof("Sending OSC to %s%s*", cfg.Transport.OSCTargetAddress, cfg.Transport.OSCPrefix)
	}

	if opts.Monitor {
		restore, err := logToFile(monitorLogFile)
		if err != nil {
			return errors.Join(err, sess.Stop())
		}
		err = tui.RunMonitor(ctx, sess.Store(), sess.Options(), gate, device.Name)
		restore()
		if err != nil {
			applog.Errorf("Monitor: %v", err)
		}
	} else {
		// Block until termination signal or end of capture
		select {
		case <-ctx.Done():
		case <-sess.Done():
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	runErr := sess.Err()
	if err := sess.Stop(); err != nil {
		applog.Errorf("Error stopping session: %v", err)
	}
	if overflows := capturer.Overflows(); overflows > 0 {
		applog.Warnf("Input overflowed %d times", overflows)
	}
	if errors.Is(runErr, session.ErrSourceClosed) {
		return fmt.Errorf("capture ended: %w", runErr)
	}
	return nil
}

// applyLogLevel sets the global log level; debug mode wins over log_level.
func applyLogLevel(cfg *config.Config) {
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
		return
	}
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
}

// buildTransport assembles the enabled outputs into one fan-out.
func buildTransport(cfg *config.Config) (transport.Transport, error) {
	tr := cfg.Transport
	encoder := params.NewEncoder(tr.OSCPrefix)
	var out transport.Fanout

	if tr.OSCEnabled {
		sender, err := udp.NewUDPSender(tr.OSCTargetAddress)
		if err != nil {
			return nil, err
		}
		publisher, err := udp.NewOSCPublisher(sender, encoder)
		if err != nil {
			return nil, closeAfter(err, sender)
		}
		out = append(out, publisher)
	}

	if tr.WebSocketEnabled {
		feed, err := transport.NewWebSocketTransport(tr.WebSocketAddress)
		if err != nil {
			return nil, closeAfter(err, out)
		}
		out = append(out, feed)
	}

	if tr.LogParameters {
		out = append(out, transport.NewLoggingTransport(encoder))
	}

	return out, nil
}

// closeAfter releases c after a startup failure. Close errors are joined
// onto err rather than dropped.
func closeAfter(err error, c io.Closer) error {
	return errors.Join(err, c.Close())
}

// logToFile redirects log output to path until restore is called.
func logToFile(path string) (restore func(), err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
