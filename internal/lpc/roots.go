// SPDX-License-Identifier: MIT
package lpc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RootSolver finds the roots of the polynomial
// coeffs[0]·z^n + coeffs[1]·z^(n-1) + … + coeffs[n].
type RootSolver interface {
	Roots(coeffs []float64) ([]complex128, error)
}

// EigenSolver computes roots as the eigenvalues of the polynomial's
// companion matrix.
type EigenSolver struct{}

var _ RootSolver = EigenSolver{}

// Roots implements RootSolver. Leading zero coefficients are dropped; a
// constant polynomial has no roots.
func (EigenSolver) Roots(coeffs []float64) ([]complex128, error) {
	for len(coeffs) > 0 && coeffs[0] == 0 {
		coeffs = coeffs[1:]
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", ErrIllConditioned)
		}
	}
	n := len(coeffs) - 1
	if n < 1 {
		return nil, nil
	}

	// First row holds -c_i/c_0, the sub-diagonal is ones.
	companion := mat.NewDense(n, n, nil)
	lead := coeffs[0]
	for j := range n {
		companion.Set(0, j, -coeffs[j+1]/lead)
	}
	for i := 1; i < n; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil, ErrNoConvergence
	}
	return eig.Values(nil), nil
}
