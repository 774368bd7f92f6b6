// SPDX-License-Identifier: MIT
package analysis

// Each stage of the pipeline sits behind a narrow interface so alternate
// implementations can be substituted and tested with synthetic signals.
// Implementations keep scratch state and are driven by a single goroutine.

// SpectrumProvider turns the analysis window into a magnitude spectrum.
type SpectrumProvider interface {
	Analyze(window []float64) MagnitudeSpectrum
}

// PitchEstimator estimates the fundamental of the analysis window.
type PitchEstimator interface {
	Estimate(window []float64) PitchEstimate
}

// HarmonicProvider samples a spectrum at multiples of a fundamental.
type HarmonicProvider interface {
	Extract(fundamentalHz float64, spectrum MagnitudeSpectrum) HarmonicGains
}

// FormantProvider derives the spectral envelope and resonances of the window.
type FormantProvider interface {
	Analyze(window []float64) FormantResult
}

// PitchEstimate is the PitchEstimator result. FundamentalHz is 0 when the
// window is unvoiced.
type PitchEstimate struct {
	FundamentalHz float64
	Clarity       float64 // normalized periodicity of the chosen candidate
	RMS           float64 // root-mean-square of the window
}

// Voiced reports whether a fundamental was found.
func (p PitchEstimate) Voiced() bool {
	return p.FundamentalHz > 0
}

// LoudnessDb is the window RMS in dB with the loudness floor applied.
func (p PitchEstimate) LoudnessDb() float64 {
	return AmplitudeToDb(p.RMS)
}

// FormantResult is the FormantProvider result. Fitted is false when the
// all-pole fit or the root solver failed and Envelope is a fallback.
type FormantResult struct {
	Envelope FormantEnvelope
	Peaks    []float64
	Fitted   bool
}
