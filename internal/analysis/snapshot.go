// SPDX-License-Identifier: MIT
package analysis

import "math"

// HarmonicCount is the number of harmonic gain slots in every snapshot.
const HarmonicCount = 20

// LoudnessFloorDb is reported for silent windows. RMS values at or below
// LoudnessFloorRMS clamp to it instead of reaching -Inf.
const (
	LoudnessFloorDb  = -100.0
	LoudnessFloorRMS = 1e-5
)

// Point is one (frequency, value) pair of a spectrum or envelope.
type Point struct {
	FrequencyHz float64 `json:"hz"`
	Value       float64 `json:"v"`
}

// MagnitudeSpectrum holds windowLength/2 bins in ascending frequency; Value is
// the linear FFT magnitude.
type MagnitudeSpectrum []Point

// FormantEnvelope holds the all-pole model response; Value is in dB.
type FormantEnvelope []Point

// HarmonicGains holds the gain of harmonics 1..HarmonicCount, each in [0, 1].
type HarmonicGains [HarmonicCount]float64

// FeatureSnapshot is the unit of publication. Every field is derived from the
// same analysis window. Published snapshots are never mutated; readers get
// copies through Clone.
type FeatureSnapshot struct {
	Cycle         uint64            `json:"cycle"`
	LoudnessDb    float64           `json:"loudness_db"`
	FundamentalHz float64           `json:"f0"` // 0 when unvoiced
	Spectrum      MagnitudeSpectrum `json:"spectrum"`
	Harmonics     HarmonicGains     `json:"harmonics"`
	Envelope      FormantEnvelope   `json:"envelope"`
	Formants      []float64         `json:"formants"`
}

// Voiced reports whether a fundamental was detected for this cycle.
func (s *FeatureSnapshot) Voiced() bool {
	return s.FundamentalHz > 0
}

// Clone returns a deep copy.
func (s *FeatureSnapshot) Clone() *FeatureSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Spectrum = append(MagnitudeSpectrum(nil), s.Spectrum...)
	c.Envelope = append(FormantEnvelope(nil), s.Envelope...)
	c.Formants = append([]float64(nil), s.Formants...)
	return &c
}

// AmplitudeToDb converts a linear RMS amplitude to dB relative to full scale,
// clamping to LoudnessFloorDb.
func AmplitudeToDb(rms float64) float64 {
	if rms <= LoudnessFloorRMS || math.IsNaN(rms) {
		return LoudnessFloorDb
	}
	return 20 * math.Log10(rms)
}

// DbToAmplitude converts a gain in dB to a linear factor.
func DbToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}
