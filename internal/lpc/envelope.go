// SPDX-License-Identifier: MIT
package lpc

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ResponseEvaluator samples the all-pole model response 1/|A(e^{jω})| at
// evenly spaced angles ω_k = π·k/points, k = 0..points-1.
//
// A(e^{jω_k}) is bin k of the 2·points DFT of the coefficient vector, so one
// zero-padded real FFT yields every point. Coefficient vectors longer than
// the FFT are folded modulo its length, which leaves those bins unchanged.
// An evaluator keeps its buffers between calls and must not be shared
// between goroutines.
type ResponseEvaluator struct {
	points   int
	fft      *fourier.FFT
	padded   []float64
	spectrum []complex128
}

// NewResponseEvaluator returns an evaluator producing points values.
func NewResponseEvaluator(points int) (*ResponseEvaluator, error) {
	if points < 1 {
		return nil, fmt.Errorf("lpc: response needs at least 1 point, got %d", points)
	}
	n := 2 * points
	return &ResponseEvaluator{
		points:   points,
		fft:      fourier.NewFFT(n),
		padded:   make([]float64, n),
		spectrum: make([]complex128, n/2+1),
	}, nil
}

// Points returns the number of values produced by Response.
func (e *ResponseEvaluator) Points() int {
	return e.points
}

// Response writes 1/|A(e^{jω_k})| for every point into dst (allocated when
// too short) and returns it. A zero denominator maps to +Inf.
func (e *ResponseEvaluator) Response(coeffs []float64, dst []float64) []float64 {
	if cap(dst) < e.points {
		dst = make([]float64, e.points)
	}
	dst = dst[:e.points]

	clear(e.padded)
	n := len(e.padded)
	for i, c := range coeffs {
		e.padded[i%n] += c
	}
	e.fft.Coefficients(e.spectrum, e.padded)

	for k := range dst {
		mag := cmplx.Abs(e.spectrum[k])
		if mag == 0 {
			dst[k] = math.Inf(1)
			continue
		}
		dst[k] = 1 / mag
	}
	return dst
}

// ResponseDb converts a Response magnitude to amplitude decibels,
// 20·log10(1/|A|). This equals 10·log10 of the model's power response.
func ResponseDb(magnitude float64) float64 {
	return 20 * math.Log10(magnitude)
}
