// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"vocalosc/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Key maxima within this fraction of the highest one compete for the pitch;
// the earliest wins, which avoids octave-low errors.
const keyMaximumRatio = 0.9

// PitchConfig holds the PitchTracker tunables.
type PitchConfig struct {
	SampleRate float64
	Threshold  float64 // minimum clarity for a voiced estimate
	MinHz      float64
	MaxHz      float64
	SilenceRMS float64
}

// PitchTracker estimates the fundamental with the McLeod normalized square
// difference function. The autocorrelation term is computed through a
// zero-padded FFT so a cycle costs O(n log n).
type PitchTracker struct {
	cfg    PitchConfig
	size   int
	minLag int
	maxLag int

	fft    *fourier.FFT
	padded []float64
	coeffs []complex128
	acf    []float64
	nsdf   []float64
}

var _ PitchEstimator = (*PitchTracker)(nil)

// NewPitchTracker returns a tracker for windows of size samples.
func NewPitchTracker(size int, cfg PitchConfig) (*PitchTracker, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", cfg.SampleRate)
	}
	if cfg.MinHz <= 0 || cfg.MaxHz <= cfg.MinHz {
		return nil, fmt.Errorf("invalid pitch range [%g, %g]", cfg.MinHz, cfg.MaxHz)
	}
	minLag := max(int(math.Floor(cfg.SampleRate/cfg.MaxHz)), 1)
	maxLag := min(int(math.Ceil(cfg.SampleRate/cfg.MinHz)), size-2)
	if maxLag <= minLag {
		return nil, fmt.Errorf("window of %d samples cannot resolve %g Hz at %g Hz", size, cfg.MinHz, cfg.SampleRate)
	}

	n := bitint.NextPowerOfTwo(2 * size)
	return &PitchTracker{
		cfg:    cfg,
		size:   size,
		minLag: minLag,
		maxLag: maxLag,
		fft:    fourier.NewFFT(n),
		padded: make([]float64, n),
		coeffs: make([]complex128, n/2+1),
		acf:    make([]float64, n),
		nsdf:   make([]float64, maxLag+2),
	}, nil
}

// Estimate implements PitchEstimator. Near-silent windows are unvoiced
// without running the detector.
func (pt *PitchTracker) Estimate(window []float64) PitchEstimate {
	var energy float64
	for _, v := range window {
		energy += v * v
	}
	if len(window) == 0 {
		return PitchEstimate{}
	}
	rms := math.Sqrt(energy / float64(len(window)))
	est := PitchEstimate{RMS: rms}
	if rms < pt.cfg.SilenceRMS || energy == 0 || len(window) != pt.size {
		return est
	}

	pt.autocorrelate(window, energy)
	pt.normalize(window, energy)

	lag, clarity, ok := pt.pickPeak()
	if !ok || clarity < pt.cfg.Threshold {
		est.Clarity = clarity
		return est
	}

	period := float64(lag) + parabolicOffset(pt.nsdf[lag-1], pt.nsdf[lag], pt.nsdf[lag+1])
	f0 := pt.cfg.SampleRate / period
	if f0 < pt.cfg.MinHz || f0 > pt.cfg.MaxHz {
		return est
	}
	est.FundamentalHz = f0
	est.Clarity = clarity
	return est
}

// autocorrelate fills acf with the linear autocorrelation of window,
// rescaled so acf[0] equals the window energy.
func (pt *PitchTracker) autocorrelate(window []float64, energy float64) {
	copy(pt.padded, window)
	clear(pt.padded[len(window):])

	pt.fft.Coefficients(pt.coeffs, pt.padded)
	for i, c := range pt.coeffs {
		pt.coeffs[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	pt.fft.Sequence(pt.acf, pt.coeffs)

	if pt.acf[0] == 0 {
		return
	}
	scale := energy / pt.acf[0]
	for i := 0; i <= pt.maxLag+1; i++ {
		pt.acf[i] *= scale
	}
}

// normalize turns acf into the NSDF, n'(τ) = 2·r(τ)/m(τ), where m(τ) is the
// summed energy of the two overlapping segments.
func (pt *PitchTracker) normalize(window []float64, energy float64) {
	n := len(window)
	m := 2 * energy
	pt.nsdf[0] = 1
	for tau := 1; tau <= pt.maxLag+1; tau++ {
		m -= window[tau-1]*window[tau-1] + window[n-tau]*window[n-tau]
		if m <= 0 {
			pt.nsdf[tau] = 0
			continue
		}
		pt.nsdf[tau] = 2 * pt.acf[tau] / m
	}
}

// pickPeak finds the key maximum of each positive NSDF region after the
// first negative crossing and returns the earliest one within
// keyMaximumRatio of the highest.
func (pt *PitchTracker) pickPeak() (lag int, clarity float64, ok bool) {
	var (
		keys    [64]int
		count   int
		inRange bool
		regMax  = -1
	)

	tau := 1
	for tau <= pt.maxLag && pt.nsdf[tau] > 0 {
		tau++
	}

	for ; tau <= pt.maxLag; tau++ {
		v := pt.nsdf[tau]
		if v > 0 {
			if !inRange {
				inRange = true
				regMax = tau
			} else if v > pt.nsdf[regMax] {
				regMax = tau
			}
			continue
		}
		if inRange {
			inRange = false
			if regMax >= pt.minLag && count < len(keys) {
				keys[count] = regMax
				count++
			}
		}
	}
	// A region still open at maxLag counts only if its maximum is interior.
	if inRange && regMax >= pt.minLag && regMax < pt.maxLag && count < len(keys) {
		keys[count] = regMax
		count++
	}

	if count == 0 {
		return 0, 0, false
	}
	var best float64
	for _, k := range keys[:count] {
		best = max(best, pt.nsdf[k])
	}
	cutoff := keyMaximumRatio * best
	for _, k := range keys[:count] {
		if pt.nsdf[k] >= cutoff {
			return k, pt.nsdf[k], true
		}
	}
	return 0, 0, false
}

// parabolicOffset returns the vertex offset, in (-0.5, 0.5), of the parabola
// through three equally spaced points centred on b.
func parabolicOffset(a, b, c float64) float64 {
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}
	off := 0.5 * (a - c) / denom
	if math.IsNaN(off) {
		return 0
	}
	return math.Max(-0.5, math.Min(0.5, off))
}
