// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"
	"fmt"

	"vocalosc/internal/analysis"
	"vocalosc/internal/config"
	applog "vocalosc/internal/log"
	"vocalosc/internal/store"
	"vocalosc/internal/transport"

	goaudio "github.com/go-audio/audio"
	"github.com/sirupsen/logrus"
)

// ErrSourceClosed is returned by Run when the capture channel closes.
var ErrSourceClosed = errors.New("capture source closed")

// Pipeline groups the analysis stages run on every cycle.
type Pipeline struct {
	Spectrum  analysis.SpectrumProvider
	Pitch     analysis.PitchEstimator
	Harmonics analysis.HarmonicProvider
	Formants  analysis.FormantProvider
}

// NewPipeline builds the default stages for windows of cfg.WindowLength()
// samples captured at sampleRate.
func NewPipeline(cfg *config.Config, sampleRate float64) (Pipeline, error) {
	an := cfg.Analysis
	size := cfg.WindowLength()

	windowFunc, err := analysis.ParseWindowFunc(an.FFTWindow)
	if err != nil {
		return Pipeline{}, err
	}
	spectrum, err := analysis.NewSpectralAnalyzer(size, sampleRate, windowFunc)
	if err != nil {
		return Pipeline{}, fmt.Errorf("spectral analyzer: %w", err)
	}

	pitch, err := analysis.NewPitchTracker(size, analysis.PitchConfig{
		SampleRate: sampleRate,
		Threshold:  an.PitchThreshold,
		MinHz:      an.MinPitchHz,
		MaxHz:      an.MaxPitchHz,
		SilenceRMS: an.SilenceRMS,
	})
	if err != nil {
		return Pipeline{}, fmt.Errorf("pitch tracker: %w", err)
	}

	formants, err := analysis.NewFormantAnalyzer(analysis.FormantConfig{
		SampleRate:     sampleRate,
		WindowLength:   size,
		Decimation:     an.Decimation,
		HighPassHz:     an.HighPassHz,
		Order:          an.LPCOrder,
		EnvelopePoints: an.EnvelopePoints,
		MaxBandwidthHz: an.MaxBandwidthHz,
	}, nil, nil)
	if err != nil {
		return Pipeline{}, fmt.Errorf("formant analyzer: %w", err)
	}

	return Pipeline{
		Spectrum:  spectrum,
		Pitch:     pitch,
		Harmonics: analysis.NewHarmonicGainExtractor(an.HarmonicScale),
		Formants:  formants,
	}, nil
}

// Loop runs one analysis cycle per captured chunk: push into the window,
// run the stages in order, publish the snapshot, then hand it to the
// transport. It owns the window and must be driven by a single goroutine.
type Loop struct {
	window    *analysis.SampleWindow
	pipeline  Pipeline
	store     *store.ResultStore
	options   *AnalyzerOptions
	transport transport.Transport // optional

	cycle      uint64
	sendErrors uint64
	log        *logrus.Entry
}

// NewLoop wires a loop. transport may be nil.
func NewLoop(window *analysis.SampleWindow, pipeline Pipeline, results *store.ResultStore, options *AnalyzerOptions, out transport.Transport) *Loop {
	return &Loop{
		window:    window,
		pipeline:  pipeline,
		store:     results,
		options:   options,
		transport: out,
		log:       applog.WithComponent("loop"),
	}
}

// Run processes chunks in arrival order until ctx is cancelled (returns
// nil) or chunks is closed (returns ErrSourceClosed).
func (l *Loop) Run(ctx context.Context, chunks <-chan *goaudio.Float32Buffer) error {
	l.log.Debug("Analysis loop started")
	defer l.log.WithField("cycles", l.cycle).Debug("Analysis loop exited")

	for {
		// Stop takes priority over a chunk that is already waiting.
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				return ErrSourceClosed
			}
			if chunk == nil {
				continue
			}
			l.Process(chunk.Data)
		}
	}
}

// Process runs one cycle on chunk and returns the published snapshot.
func (l *Loop) Process(chunk []float32) *analysis.FeatureSnapshot {
	gain := analysis.DbToAmplitude(l.options.InputGainDb())
	l.window.PushScaled(chunk, gain)
	view := l.window.View()

	spectrum := l.pipeline.Spectrum.Analyze(view)
	pitch := l.pipeline.Pitch.Estimate(view)
	harmonics := l.pipeline.Harmonics.Extract(pitch.FundamentalHz, spectrum)
	formants := l.pipeline.Formants.Analyze(view)

	l.cycle++
	snap := &analysis.FeatureSnapshot{
		Cycle:         l.cycle,
		LoudnessDb:    pitch.LoudnessDb(),
		FundamentalHz: pitch.FundamentalHz,
		Spectrum:      spectrum,
		Harmonics:     harmonics,
		Envelope:      formants.Envelope,
		Formants:      formants.Peaks,
	}
	l.store.Publish(snap)

	if l.transport != nil {
		if err := l.transport.Send(snap); err != nil {
			l.sendErrors++
			// Receivers come and go; one warning per burst is enough.
			if l.sendErrors == 1 || l.sendErrors%500 == 0 {
				l.log.WithError(err).Warnf("Parameter send failed (%d so far)", l.sendErrors)
			}
		}
	}

	if applog.DebugEnabled() && l.cycle%100 == 0 {
		l.log.WithFields(logrus.Fields{
			"cycle":    l.cycle,
			"f0":       pitch.FundamentalHz,
			"clarity":  pitch.Clarity,
			"loudness": snap.LoudnessDb,
			"formants": formants.Peaks,
		}).Debug("Cycle")
	}
	return snap
}

// Cycles returns the number of completed cycles. Call it only from the
// goroutine driving the loop or after Run has returned.
func (l *Loop) Cycles() uint64 {
	return l.cycle
}
