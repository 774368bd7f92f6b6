// SPDX-License-Identifier: MIT
/*
Package params maps feature snapshots onto named, quantized float
parameters and packs one cycle's parameters into a single OSC bundle.

Every value sent is a float32 in [0, 1]. Pitch and formant frequencies are
normalized, quantized to 14 bits and split into two 7-bit halves (suffixes
_L and _H) for receivers whose parameter channels hold only 8 bits.
*/
package params

import (
	"fmt"
	"math"
	"time"

	"vocalosc/internal/analysis"

	"github.com/hypebeast/go-osc/osc"
)

const (
	// PitchLowHz and PitchHighHz bound the logarithmic pitch scale (E2, G5).
	PitchLowHz  = 82.407
	PitchHighHz = 783.991

	// FormantScaleHz is the formant frequency that maps to 1.0.
	FormantScaleHz = 8192.0

	// QuantSteps is the largest 14-bit code.
	QuantSteps = 1<<14 - 1

	// MaxFormants is the number of formant slots sent per cycle.
	MaxFormants = 4

	halfMask  = 0x7F
	halfScale = 127.0
)

// Parameter is one named outbound value.
type Parameter struct {
	Name  string
	Value float32
}

// Encoder builds the per-cycle parameter set. Names are resolved once at
// construction so encoding only formats values.
type Encoder struct {
	prefix    string
	harmonics [analysis.HarmonicCount]string
	pitch     [2]string
	formants  [MaxFormants][2]string
}

// NewEncoder returns an encoder whose addresses all start with prefix, e.g.
// "/avatar/parameters/".
func NewEncoder(prefix string) *Encoder {
	e := &Encoder{prefix: prefix}
	for k := range e.harmonics {
		e.harmonics[k] = fmt.Sprintf("%sG%d", prefix, k+1)
	}
	e.pitch = [2]string{prefix + "FT_L", prefix + "FT_H"}
	for i := range e.formants {
		e.formants[i] = [2]string{
			fmt.Sprintf("%sF%d_L", prefix, i+1),
			fmt.Sprintf("%sF%d_H", prefix, i+1),
		}
	}
	return e
}

// Prefix returns the address prefix.
func (e *Encoder) Prefix() string { return e.prefix }

// Parameters returns the cycle's parameters in send order: G1..G20,
// FT_L, FT_H, then F1_L, F1_H.. for each present formant peak.
func (e *Encoder) Parameters(snap *analysis.FeatureSnapshot) []Parameter {
	nf := min(len(snap.Formants), MaxFormants)
	out := make([]Parameter, 0, analysis.HarmonicCount+2+2*nf)

	for k, g := range snap.Harmonics {
		out = append(out, Parameter{Name: e.harmonics[k], Value: float32(clamp01(g))})
	}

	lo, hi := Split14(NormalizePitch(snap.FundamentalHz))
	out = append(out,
		Parameter{Name: e.pitch[0], Value: float32(lo)},
		Parameter{Name: e.pitch[1], Value: float32(hi)},
	)

	for i := range nf {
		lo, hi := Split14(NormalizeFormant(snap.Formants[i]))
		out = append(out,
			Parameter{Name: e.formants[i][0], Value: float32(lo)},
			Parameter{Name: e.formants[i][1], Value: float32(hi)},
		)
	}
	return out
}

// Bundle packs the cycle's parameters into one bundle timestamped at.
func (e *Encoder) Bundle(snap *analysis.FeatureSnapshot, at time.Time) *osc.Bundle {
	bundle := osc.NewBundle(at)
	for _, p := range e.Parameters(snap) {
		bundle.Messages = append(bundle.Messages, osc.NewMessage(p.Name, p.Value))
	}
	return bundle
}

// Encode returns the wire form of the cycle's bundle.
func (e *Encoder) Encode(snap *analysis.FeatureSnapshot, at time.Time) ([]byte, error) {
	data, err := e.Bundle(snap, at).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OSC bundle: %w", err)
	}
	return data, nil
}

// NormalizePitch maps hz logarithmically onto [0, 1] between PitchLowHz and
// PitchHighHz. Unvoiced (hz <= 0) maps to 0, the same as the lowest pitch.
func NormalizePitch(hz float64) float64 {
	if hz <= 0 || math.IsNaN(hz) {
		return 0
	}
	x := (math.Log(hz) - math.Log(PitchLowHz)) / (math.Log(PitchHighHz) - math.Log(PitchLowHz))
	return clamp01(x)
}

// NormalizeFormant maps hz linearly onto [0, 1] over [0, FormantScaleHz].
func NormalizeFormant(hz float64) float64 {
	if math.IsNaN(hz) {
		return 0
	}
	return math.Max(0, math.Min(FormantScaleHz, hz)) / FormantScaleHz
}

// Quantize returns the 14-bit code of x, clamped to [0, 1].
func Quantize(x float64) int {
	return int(math.Round(clamp01(x) * QuantSteps))
}

// Split14 quantizes x and returns its low and high 7-bit halves, each scaled
// to [0, 1].
func Split14(x float64) (low, high float64) {
	v := Quantize(x)
	return float64(v&halfMask) / halfScale, float64((v>>7)&halfMask) / halfScale
}

// Join14 reverses Split14 up to quantization.
func Join14(low, high float64) float64 {
	lo := math.Round(low * halfScale)
	hi := math.Round(high * halfScale)
	return (lo + hi*128) / QuantSteps
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
