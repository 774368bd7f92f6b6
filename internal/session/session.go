// SPDX-License-Identifier: MIT
/*
Package session ties one capture source to one analysis loop.

A Session owns the loop's goroutine. Start launches it, Stop cancels it
and joins it with a bounded wait, then releases the capture source. Once
Stop returns without error the ResultStore receives no further writes.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vocalosc/internal/analysis"
	"vocalosc/internal/config"
	applog "vocalosc/internal/log"
	"vocalosc/internal/store"
	"vocalosc/internal/transport"

	goaudio "github.com/go-audio/audio"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyRunning is returned by Start on a running session.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrStopTimeout is returned by Stop when the loop does not exit in time.
	ErrStopTimeout = errors.New("analysis loop did not stop in time")
)

// CaptureSource delivers mono chunks on a bounded channel that is closed
// when capture ends.
type CaptureSource interface {
	Chunks() <-chan *goaudio.Float32Buffer
	Close() error
}

// Session is one running analysis of one capture source.
type Session struct {
	source      CaptureSource
	loop        *Loop
	store       *store.ResultStore
	options     *AnalyzerOptions
	stopTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	running bool
	stopped bool
	runErr  error

	log *logrus.Entry
}

// New builds a session from configuration. sampleRate is the rate the
// source actually captures at. out may be nil.
func New(cfg *config.Config, sampleRate float64, source CaptureSource, out transport.Transport) (*Session, error) {
	if source == nil {
		return nil, errors.New("session: capture source cannot be nil")
	}
	pipeline, err := NewPipeline(cfg, sampleRate)
	if err != nil {
		return nil, err
	}
	window, err := analysis.NewSampleWindow(cfg.WindowLength())
	if err != nil {
		return nil, err
	}

	results := store.New(cfg.Analysis.HistoryLength)
	options := NewAnalyzerOptions(cfg.Analysis.InputGainDb)
	loop := NewLoop(window, pipeline, results, options, out)

	return newSession(source, loop, results, options, cfg.Transport.StopTimeout), nil
}

func newSession(source CaptureSource, loop *Loop, results *store.ResultStore, options *AnalyzerOptions, stopTimeout time.Duration) *Session {
	if stopTimeout <= 0 {
		stopTimeout = config.DefaultStopTimeout
	}
	return &Session{
		source:      source,
		loop:        loop,
		store:       results,
		options:     options,
		stopTimeout: stopTimeout,
		done:        make(chan struct{}),
		log:         applog.WithComponent("session"),
	}
}

// Store returns the session's result store for readers.
func (s *Session) Store() *store.ResultStore {
	return s.store
}

// Options returns the session's mutable analyzer options.
func (s *Session) Options() *AnalyzerOptions {
	return s.options
}

// SetInputGainDb adjusts the input gain of the running analysis.
func (s *Session) SetInputGainDb(db float64) {
	s.options.SetInputGainDb(db)
}

// Start launches the analysis goroutine. A session runs at most once.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.stopped {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)

		err := s.loop.Run(runCtx, s.source.Chunks())
		if errors.Is(err, ErrSourceClosed) {
			s.log.Warn("Capture ended; results will no longer update")
		}
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
	}()

	s.log.Info("Session started")
	return nil
}

// Done is closed when the analysis goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns ErrSourceClosed if the loop ended because capture stopped,
// nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Stop cancels the loop, waits up to the stop timeout for it to exit and
// closes the capture source. Calling Stop again is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	var errs []error
	exited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(s.stopTimeout):
		errs = append(errs, fmt.Errorf("%w (waited %s)", ErrStopTimeout, s.stopTimeout))
	}

	if err := s.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close capture source: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.log.WithError(err).Error("Session stopped uncleanly")
	} else {
		s.log.Info("Session stopped")
	}
	return err
}
