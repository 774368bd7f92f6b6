// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateEnable(t *testing.T) {
	g := NewGate(0)
	assert.False(t, g.Enabled(), "Gate should be disabled with a zero threshold")

	g.Enable()
	g.Enable() // Multiple calls should be idempotent
	assert.True(t, g.Enabled())

	g.Disable()
	g.Disable()
	assert.False(t, g.Enabled())

	assert.True(t, NewGate(0.01).Enabled())
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	g := NewGate(0)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.input), func(t *testing.T) {
			g.SetThreshold(tt.input)
			assert.InDelta(t, tt.expected, g.Threshold(), 1e-6)
		})
	}
}

func TestGateApply(t *testing.T) {
	g := NewGate(0.1)

	quiet := []float32{0.01, -0.05, 0.09}
	assert.True(t, g.Apply(quiet))
	assert.Equal(t, []float32{0, 0, 0}, quiet)

	loud := []float32{0.01, -0.5, 0.02}
	assert.False(t, g.Apply(loud))
	assert.Equal(t, []float32{0.01, -0.5, 0.02}, loud)

	g.Disable()
	quiet = []float32{0.01, 0.02}
	assert.False(t, g.Apply(quiet))
	assert.Equal(t, []float32{0.01, 0.02}, quiet)
}

func TestPeak(t *testing.T) {
	assert.Zero(t, Peak(nil))
	assert.Equal(t, float32(0.75), Peak([]float32{0.1, -0.75, 0.5}))
}

// TestGateHotPath checks the gate does not allocate per chunk.
func TestGateHotPath(t *testing.T) {
	g := NewGate(0.5)
	buffer := make([]float32, 1024)
	for i := range buffer {
		buffer[i] = float32(i%100) / 100
	}

	allocs := testing.AllocsPerRun(100, func() {
		_ = g.Apply(buffer)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in gate hot path, got %.1f", allocs)
	}
}
