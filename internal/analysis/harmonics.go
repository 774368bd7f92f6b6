// SPDX-License-Identifier: MIT
package analysis

import "math"

// HarmonicGainExtractor samples a magnitude spectrum at integer multiples of
// the fundamental and maps each magnitude to a gain in [0, 1].
type HarmonicGainExtractor struct {
	scale float64 // gain = ln(magnitude) * scale
}

var _ HarmonicProvider = (*HarmonicGainExtractor)(nil)

// NewHarmonicGainExtractor returns an extractor using the given log-magnitude
// scale.
func NewHarmonicGainExtractor(scale float64) *HarmonicGainExtractor {
	return &HarmonicGainExtractor{scale: scale}
}

// Extract implements HarmonicProvider. The bins bracketing each target are
// found by a forward scan, so the spectrum need not have a fixed bin width.
// Targets past the last bin get gain 0; an unvoiced input gets all zeros.
func (h *HarmonicGainExtractor) Extract(fundamentalHz float64, spectrum MagnitudeSpectrum) HarmonicGains {
	var gains HarmonicGains
	if fundamentalHz <= 0 || len(spectrum) < 2 {
		return gains
	}

	last := spectrum[len(spectrum)-1].FrequencyHz
	i := 0
	for k := range HarmonicCount {
		target := fundamentalHz * float64(k+1)
		if target > last {
			break
		}
		for i+1 < len(spectrum)-1 && spectrum[i+1].FrequencyHz <= target {
			i++
		}
		lo, hi := spectrum[i], spectrum[i+1]
		var mag float64
		if span := hi.FrequencyHz - lo.FrequencyHz; span > 0 {
			frac := (target - lo.FrequencyHz) / span
			mag = lo.Value + frac*(hi.Value-lo.Value)
		} else {
			mag = lo.Value
		}
		gains[k] = h.gain(mag)
	}
	return gains
}

func (h *HarmonicGainExtractor) gain(magnitude float64) float64 {
	if magnitude <= 0 {
		return 0
	}
	g := math.Log(magnitude) * h.scale
	return math.Max(0, math.Min(1, g))
}
