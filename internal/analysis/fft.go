// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanHarris
	BlackmanNuttall
	FlatTop
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Buffer for windowed input signal.
	fftOutput []complex128 // Buffer for FFT complex results.
	window    []float64    // Pre-calculated window coefficients.
}

// SpectralAnalyzer computes the magnitude spectrum of the analysis window:
// window function, forward FFT of exactly the window length, magnitudes of
// the first windowLength/2 bins. The mirrored negative-frequency half is
// discarded.
type SpectralAnalyzer struct {
	fftCalculator *fourier.FFT // Reusable FFT calculator instance.
	fftSize       int          // Number of points for the FFT (== window length).
	sampleRate    float64      // Sample rate of the input audio (Hz).
	workspace     fftWorkspace // Pre-allocated buffers.
}

var _ SpectrumProvider = (*SpectralAnalyzer)(nil)

// NewSpectralAnalyzer returns an analyzer for windows of fftSize samples.
func NewSpectralAnalyzer(fftSize int, sampleRate float64, windowType WindowFunc) (*SpectralAnalyzer, error) {
	if fftSize < 2 {
		return nil, fmt.Errorf("fft size must be at least 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	return &SpectralAnalyzer{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, fftSize/2+1),
			window:    windowCoeffs,
		},
	}, nil
}

// Analyze returns a freshly allocated spectrum for view, which must hold
// exactly fftSize samples.
func (p *SpectralAnalyzer) Analyze(view []float64) MagnitudeSpectrum {
	spectrum := make(MagnitudeSpectrum, p.fftSize/2)
	p.transform(view)
	for i := range spectrum {
		spectrum[i] = Point{
			FrequencyHz: p.FrequencyForBin(i),
			Value:       cmplx.Abs(p.workspace.fftOutput[i]),
		}
	}
	return spectrum
}

// MagnitudesInto writes the fftSize/2 bin magnitudes of view into dest
// without allocating.
func (p *SpectralAnalyzer) MagnitudesInto(dest []float64, view []float64) error {
	if len(dest) != p.fftSize/2 {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), p.fftSize/2)
	}
	p.transform(view)
	for i := range dest {
		dest[i] = cmplx.Abs(p.workspace.fftOutput[i])
	}
	return nil
}

func (p *SpectralAnalyzer) transform(view []float64) {
	// Zero-pad if the view is short; the analysis loop always passes a full window.
	for i := range p.fftSize {
		if i < len(view) {
			p.workspace.input[i] = view[i] * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0
		}
	}
	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)
}

// FrequencyForBin returns the frequency (Hz) of bin i: i·sampleRate/fftSize.
func (p *SpectralAnalyzer) FrequencyForBin(binIndex int) float64 {
	return float64(binIndex) * p.sampleRate / float64(p.fftSize)
}

// FFTSize returns the configured FFT size (number of points).
func (p *SpectralAnalyzer) FFTSize() int {
	return p.fftSize
}

// SampleRate returns the configured sample rate (Hz).
func (p *SpectralAnalyzer) SampleRate() float64 {
	return p.sampleRate
}

// windowNameSeparators are ignored when parsing window names, so
// "Blackman-Harris", "blackman_harris" and "BlackmanHarris" are equal.
var windowNameSeparators = strings.NewReplacer("-", "", "_", "", " ", "")

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch windowNameSeparators.Replace(strings.ToLower(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmanharris":
		return BlackmanHarris, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "flattop":
		return FlatTop, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// String returns the configuration name of the window.
func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanHarris:
		return "BlackmanHarris"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case FlatTop:
		return "FlatTop"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// applyWindow fills coeffs with the selected window function. Unknown types
// fall back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions scale in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanHarris:
		window.BlackmanHarris(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case FlatTop:
		window.FlatTop(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// hannCoefficients returns a Hann window of length n.
func hannCoefficients(n int) []float64 {
	coeffs := make([]float64, n)
	applyWindow(coeffs, Hann)
	return coeffs
}
