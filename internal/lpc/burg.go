// SPDX-License-Identifier: MIT
/*
Package lpc fits all-pole linear-prediction models and extracts their
frequency response and poles.

Coefficient slices always hold the full polynomial A(z) = 1 + a1·z^-1 + … +
aP·z^-P, so coeffs[0] == 1 and len(coeffs) == order+1.
*/
package lpc

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrIllConditioned is returned when the input carries too little energy
	// (silence) or produces non-finite reflection coefficients.
	ErrIllConditioned = errors.New("lpc: ill-conditioned input")

	// ErrNoConvergence is returned when the root solver fails to converge.
	ErrNoConvergence = errors.New("lpc: root solver did not converge")
)

// minEnergy is the per-stage energy below which a reflection coefficient is
// treated as undefined.
const minEnergy = 1e-18

// Fitter estimates prediction coefficients for a frame.
type Fitter interface {
	Fit(frame []float64, order int) ([]float64, error)
}

// BurgFitter implements Fitter with Burg's method. It keeps its forward and
// backward error buffers between calls; a BurgFitter must not be shared
// between goroutines.
type BurgFitter struct {
	forward  []float64
	backward []float64
}

var _ Fitter = (*BurgFitter)(nil)

// NewBurgFitter returns a fitter with buffers sized for frames of frameLen.
func NewBurgFitter(frameLen int) *BurgFitter {
	return &BurgFitter{
		forward:  make([]float64, frameLen),
		backward: make([]float64, frameLen),
	}
}

// Fit returns order+1 coefficients of A(z) minimising the summed forward and
// backward prediction error over frame. The returned slice is freshly
// allocated.
func (bf *BurgFitter) Fit(frame []float64, order int) ([]float64, error) {
	n := len(frame)
	if order < 1 {
		return nil, fmt.Errorf("lpc: order must be positive, got %d", order)
	}
	if n <= order {
		return nil, fmt.Errorf("%w: %d samples for order %d", ErrIllConditioned, n, order)
	}
	if cap(bf.forward) < n {
		bf.forward = make([]float64, n)
		bf.backward = make([]float64, n)
	}
	f := bf.forward[:n]
	b := bf.backward[:n]
	copy(f, frame)
	copy(b, frame)

	a := make([]float64, order+1)
	a[0] = 1

	for m := 0; m < order; m++ {
		var num, den float64
		for i := m + 1; i < n; i++ {
			num += f[i] * b[i-1]
			den += f[i]*f[i] + b[i-1]*b[i-1]
		}
		if den < minEnergy {
			return nil, fmt.Errorf("%w: stage %d energy %.3g", ErrIllConditioned, m+1, den)
		}

		k := -2 * num / den
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return nil, fmt.Errorf("%w: stage %d reflection %v", ErrIllConditioned, m+1, k)
		}

		// A_{m+1}(z) = A_m(z) + k·z^-(m+1)·A_m(1/z)
		for i := 0; i <= (m+1)/2; i++ {
			j := m + 1 - i
			ai, aj := a[i], a[j]
			a[i] = ai + k*aj
			if i != j {
				a[j] = aj + k*ai
			}
		}

		// Descending so b[i-1] still holds the previous stage's value.
		for i := n - 1; i > m; i-- {
			fi, bi := f[i], b[i-1]
			f[i] = fi + k*bi
			b[i] = bi + k*fi
		}
	}

	return a, nil
}
