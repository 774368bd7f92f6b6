// SPDX-License-Identifier: MIT
/*
Package audio captures microphone input with PortAudio and delivers it as
fixed-size mono chunks.

Capture uses PortAudio's blocking read API on a dedicated goroutine locked
to its OS thread. Each read is downmixed into a freshly allocated chunk
whose ownership passes to the receiver. The chunk channel is bounded and
the send blocks, so a slow consumer stalls capture instead of growing
memory; PortAudio then reports an input overflow, which is logged.
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	applog "vocalosc/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// inputStream is the subset of *portaudio.Stream the capturer drives.
type inputStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// openStreamFunc opens a blocking stream that reads into buf. Tests
// replace it with a synthetic stream.
var openStreamFunc = func(params portaudio.StreamParameters, buf []float32) (inputStream, error) {
	return portaudio.OpenStream(params, buf)
}

// CaptureConfig describes the capture stream.
type CaptureConfig struct {
	Device          *portaudio.DeviceInfo
	SampleRate      float64 // 0 selects the device default
	FramesPerBuffer int
	Channels        int
	LowLatency      bool
	QueueSize       int
	Gate            *Gate // optional
}

// Capturer reads from an input device and publishes mono chunks.
type Capturer struct {
	cfg        CaptureConfig
	sampleRate float64
	stream     inputStream
	input      []float32 // interleaved frames × channels

	chunks    chan *goaudio.Float32Buffer
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	started   atomic.Bool
	overflows atomic.Uint64

	log *logrus.Entry
}

// NewCapturer opens the input stream. Capture begins with Start.
func NewCapturer(cfg CaptureConfig) (*Capturer, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("%w: no device selected", ErrInvalidDevice)
	}
	if cfg.FramesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", cfg.FramesPerBuffer)
	}
	channels := min(max(cfg.Channels, 1), max(cfg.Device.MaxInputChannels, 1))
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = cfg.Device.DefaultSampleRate
	}

	latency := cfg.Device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = cfg.Device.DefaultLowInputLatency
	}

	c := &Capturer{
		cfg:        cfg,
		sampleRate: sampleRate,
		input:      make([]float32, cfg.FramesPerBuffer*channels),
		chunks:     make(chan *goaudio.Float32Buffer, cfg.QueueSize),
		done:       make(chan struct{}),
		log:        applog.WithComponent("capture"),
	}
	c.cfg.Channels = channels

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   cfg.Device,
			Channels: channels,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      sampleRate,
	}

	stream, err := openStreamFunc(params, c.input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on '%s': %w", cfg.Device.Name, err)
	}
	c.stream = stream

	c.log.WithFields(logrus.Fields{
		"device":   cfg.Device.Name,
		"rate":     sampleRate,
		"frames":   cfg.FramesPerBuffer,
		"channels": channels,
		"latency":  latency,
	}).Info("Input stream opened")
	return c, nil
}

// SampleRate returns the rate the stream was opened at.
func (c *Capturer) SampleRate() float64 {
	return c.sampleRate
}

// Chunks returns the capture channel. It is closed when capture ends,
// either through Close or because the device failed.
func (c *Capturer) Chunks() <-chan *goaudio.Float32Buffer {
	return c.chunks
}

// Overflows returns how many reads reported lost input.
func (c *Capturer) Overflows() uint64 {
	return c.overflows.Load()
}

// Start starts the stream and the capture goroutine.
func (c *Capturer) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("capture already started")
	}
	if err := c.stream.Start(); err != nil {
		c.started.Store(false)
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	c.wg.Add(1)
	go c.run()
	return nil
}

// run is the capture loop. It exits on Close or on a read error and
// always closes the chunk channel.
func (c *Capturer) run() {
	defer c.wg.Done()
	defer close(c.chunks)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if !errors.Is(err, portaudio.InputOverflowed) {
				c.log.WithError(err).Error("Input stream read failed, stopping capture")
				return
			}
			// The buffer still holds a full read.
			if n := c.overflows.Add(1); n == 1 || n%100 == 0 {
				c.log.Warnf("Input overflowed (%d so far); analysis is falling behind", n)
			}
		}

		chunk := c.downmix()
		if c.cfg.Gate != nil {
			c.cfg.Gate.Apply(chunk.Data)
		}

		select {
		case c.chunks <- chunk:
		case <-c.done:
			return
		}
	}
}

// downmix averages the interleaved input into a new mono chunk.
func (c *Capturer) downmix() *goaudio.Float32Buffer {
	frames := c.cfg.FramesPerBuffer
	channels := c.cfg.Channels
	data := make([]float32, frames)
	if channels == 1 {
		copy(data, c.input)
	} else {
		scale := 1 / float32(channels)
		for i := range frames {
			var sum float32
			for ch := range channels {
				sum += c.input[i*channels+ch]
			}
			data[i] = sum * scale
		}
	}
	return &goaudio.Float32Buffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  int(c.sampleRate),
		},
		Data:           data,
		SourceBitDepth: 32,
	}
}

// Close stops capture, waits for the capture goroutine and releases the
// stream. It is safe to call more than once.
func (c *Capturer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		// A blocked Read returns within one buffer period.
		waited := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(time.Second):
			c.log.Warn("Capture goroutine did not exit in time")
		}

		if c.started.Load() {
			if stopErr := c.stream.Stop(); stopErr != nil {
				err = fmt.Errorf("failed to stop input stream: %w", stopErr)
			}
		}
		if closeErr := c.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close input stream: %w", closeErr)
		}
		if !c.started.Load() {
			close(c.chunks)
		}
		c.log.Info("Input stream closed")
	})
	return err
}
