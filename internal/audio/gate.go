// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a block noise gate: a chunk whose peak stays under the threshold
// is replaced with silence before it reaches the analysis window. The
// capture goroutine applies it while any goroutine may retune it.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint32 // float32 bits, linear amplitude in [0, 1]
}

// NewGate returns a gate with the given threshold, enabled when the
// threshold is above zero.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	if threshold > 0 {
		g.Enable()
	}
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = math.Max(0, math.Min(1, threshold))
	g.threshold.Store(math.Float32bits(float32(threshold)))
}

// Threshold returns the current noise gate threshold.
func (g *Gate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold.Load()))
}

// Apply zeroes samples in place when the gate is enabled and their peak is
// below the threshold. It reports whether the chunk was silenced.
func (g *Gate) Apply(samples []float32) bool {
	if !g.Enabled() {
		return false
	}
	if Peak(samples) >= math.Float32frombits(g.threshold.Load()) {
		return false
	}
	clear(samples)
	return true
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
