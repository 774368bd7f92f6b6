// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	applog "vocalosc/internal/log"
	"vocalosc/internal/lpc"

	"github.com/sirupsen/logrus"
)

// formantBandMarginHz keeps peaks away from DC and the resampled Nyquist,
// where pole angles are dominated by numerical artifacts.
const formantBandMarginHz = 100.0

// FormantConfig holds the FormantAnalyzer tunables.
type FormantConfig struct {
	SampleRate     float64
	WindowLength   int
	Decimation     int
	HighPassHz     float64
	Order          int
	EnvelopePoints int

	// MaxBandwidthHz drops poles whose -3 dB bandwidth, -ln|z|·rate/π at
	// the resampled rate, is wider than this. Zero keeps every pole.
	MaxBandwidthHz float64
}

// FormantAnalyzer estimates the vocal tract envelope and its resonances:
// decimate, high-pass, Hann window, all-pole fit, then envelope evaluation
// and pole extraction. Failures in the fit or the root solver produce an
// empty peak list and the last good envelope.
type FormantAnalyzer struct {
	cfg     FormantConfig
	nyquist float64 // resampled Nyquist frequency
	alpha   float64 // high-pass pole

	fitter   lpc.Fitter
	solver   lpc.RootSolver
	envelope *lpc.ResponseEvaluator

	frame    []float64
	window   []float64
	response []float64
	last     FormantEnvelope

	log *logrus.Entry
}

var _ FormantProvider = (*FormantAnalyzer)(nil)

// NewFormantAnalyzer builds an analyzer. A nil fitter selects Burg's method
// and a nil solver the companion-matrix eigen solver.
func NewFormantAnalyzer(cfg FormantConfig, fitter lpc.Fitter, solver lpc.RootSolver) (*FormantAnalyzer, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", cfg.SampleRate)
	}
	if cfg.Decimation < 1 {
		return nil, fmt.Errorf("decimation must be >= 1, got %d", cfg.Decimation)
	}
	if cfg.EnvelopePoints < 2 {
		return nil, fmt.Errorf("envelope needs at least 2 points, got %d", cfg.EnvelopePoints)
	}
	if cfg.MaxBandwidthHz < 0 {
		return nil, fmt.Errorf("max bandwidth must not be negative, got %g", cfg.MaxBandwidthHz)
	}
	frameLen := cfg.WindowLength / cfg.Decimation
	if frameLen <= cfg.Order || cfg.Order < 1 {
		return nil, fmt.Errorf("decimated window of %d samples cannot fit order %d", frameLen, cfg.Order)
	}

	if fitter == nil {
		fitter = lpc.NewBurgFitter(frameLen)
	}
	if solver == nil {
		solver = lpc.EigenSolver{}
	}
	envelope, err := lpc.NewResponseEvaluator(cfg.EnvelopePoints)
	if err != nil {
		return nil, err
	}

	resampled := cfg.SampleRate / float64(cfg.Decimation)
	fa := &FormantAnalyzer{
		cfg:      cfg,
		nyquist:  resampled / 2,
		alpha:    math.Exp(-2 * math.Pi * cfg.HighPassHz / resampled),
		fitter:   fitter,
		solver:   solver,
		envelope: envelope,
		frame:    make([]float64, frameLen),
		window:   hannCoefficients(frameLen),
		response: make([]float64, cfg.EnvelopePoints),
		log:      applog.WithComponent("formant"),
	}

	// Flat 0 dB until the first successful fit.
	fa.last = make(FormantEnvelope, cfg.EnvelopePoints)
	for k := range fa.last {
		fa.last[k] = Point{FrequencyHz: fa.frequencyForPoint(k)}
	}
	return fa, nil
}

// ResampledNyquist returns the Nyquist frequency of the decimated signal.
func (fa *FormantAnalyzer) ResampledNyquist() float64 {
	return fa.nyquist
}

// Analyze implements FormantProvider. The returned slices are owned by the
// caller.
func (fa *FormantAnalyzer) Analyze(view []float64) FormantResult {
	fa.prepare(view)

	coeffs, err := fa.fitter.Fit(fa.frame, fa.cfg.Order)
	if err != nil {
		fa.logFailure("fit", err)
		return fa.fallback()
	}

	roots, err := fa.solver.Roots(coeffs)
	if err != nil {
		fa.logFailure("roots", err)
		return fa.fallback()
	}

	mags := fa.envelope.Response(coeffs, fa.response)
	envelope := make(FormantEnvelope, len(mags))
	for k, m := range mags {
		db := lpc.ResponseDb(m)
		if math.IsNaN(db) || math.IsInf(db, 0) {
			fa.logFailure("envelope", lpc.ErrIllConditioned)
			return fa.fallback()
		}
		envelope[k] = Point{FrequencyHz: fa.frequencyForPoint(k), Value: db}
	}
	fa.last = envelope

	return FormantResult{
		Envelope: slices.Clone(envelope),
		Peaks:    fa.peaks(roots),
		Fitted:   true,
	}
}

// prepare decimates view into frame, then applies the high-pass and the
// Hann window in place.
func (fa *FormantAnalyzer) prepare(view []float64) {
	d := fa.cfg.Decimation
	for i := range fa.frame {
		var sum float64
		for j := range d {
			if idx := i*d + j; idx < len(view) {
				sum += view[idx]
			}
		}
		fa.frame[i] = sum
	}

	// Reverse order so each step sees the unfiltered predecessor.
	for i := len(fa.frame) - 1; i >= 1; i-- {
		fa.frame[i] -= fa.alpha * fa.frame[i-1]
	}

	for i := range fa.frame {
		fa.frame[i] *= fa.window[i]
	}
}

// peaks maps root angles to frequencies, keeps narrow-band poles strictly
// inside the analysis band and sorts them ascending. Conjugate roots have
// negative angles and fall out of the band.
func (fa *FormantAnalyzer) peaks(roots []complex128) []float64 {
	lo, hi := formantBandMarginHz, fa.nyquist-formantBandMarginHz
	out := make([]float64, 0, len(roots)/2)
	for _, r := range roots {
		f := math.Atan2(imag(r), real(r)) * fa.nyquist / math.Pi
		if f <= lo || f >= hi {
			continue
		}
		// Weak poles shape the spectral tilt rather than a resonance.
		if fa.cfg.MaxBandwidthHz > 0 && fa.bandwidth(r) > fa.cfg.MaxBandwidthHz {
			continue
		}
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// bandwidth returns the -3 dB bandwidth in Hz of a pole at the resampled
// rate. Poles at the origin have infinite bandwidth.
func (fa *FormantAnalyzer) bandwidth(pole complex128) float64 {
	return -math.Log(cmplx.Abs(pole)) * 2 * fa.nyquist / math.Pi
}

func (fa *FormantAnalyzer) fallback() FormantResult {
	return FormantResult{
		Envelope: slices.Clone(fa.last),
		Peaks:    []float64{},
	}
}

func (fa *FormantAnalyzer) frequencyForPoint(k int) float64 {
	return float64(k) / float64(fa.cfg.EnvelopePoints) * fa.nyquist
}

// logFailure reports numerical failures at debug level; silence makes the
// fit fail every cycle, which is expected.
func (fa *FormantAnalyzer) logFailure(stage string, err error) {
	if !applog.DebugEnabled() {
		return
	}
	entry := fa.log.WithField("stage", stage)
	if errors.Is(err, lpc.ErrIllConditioned) {
		entry.Debug("formant analysis skipped: ill-conditioned input")
		return
	}
	entry.WithError(err).Debug("formant analysis failed")
}
