// SPDX-License-Identifier: MIT
/*
Package store holds the most recent analysis results for concurrent readers.

The analysis loop builds each FeatureSnapshot completely before handing it
to Publish, which only swaps a pointer and appends to the pitch history
while holding the lock. Readers copy out of the immutable snapshot, so a
reader never sees fields from two different cycles.
*/
package store

import (
	"slices"
	"sync"

	"vocalosc/internal/analysis"
)

// ResultStore is a single-writer, multi-reader holder of the latest
// FeatureSnapshot and a bounded pitch history.
type ResultStore struct {
	mu      sync.RWMutex
	current *analysis.FeatureSnapshot
	history *FrequencyHistory
}

// New returns a store whose pitch history holds historyLen values.
func New(historyLen int) *ResultStore {
	return &ResultStore{
		current: emptySnapshot(),
		history: NewFrequencyHistory(historyLen),
	}
}

func emptySnapshot() *analysis.FeatureSnapshot {
	return &analysis.FeatureSnapshot{
		LoudnessDb: analysis.LoudnessFloorDb,
		Formants:   []float64{},
	}
}

// Publish installs snap as the current snapshot and records its
// fundamental. The store takes ownership: the caller must not modify snap
// afterwards.
func (s *ResultStore) Publish(snap *analysis.FeatureSnapshot) {
	if snap == nil {
		return
	}
	hz := snap.FundamentalHz
	if !snap.Voiced() {
		hz = Unvoiced
	}

	s.mu.Lock()
	s.current = snap
	s.history.Push(hz)
	s.mu.Unlock()
}

func (s *ResultStore) load() *analysis.FeatureSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Snapshot returns a deep copy of the latest snapshot.
func (s *ResultStore) Snapshot() *analysis.FeatureSnapshot {
	return s.load().Clone()
}

// Cycle returns the cycle number of the latest snapshot.
func (s *ResultStore) Cycle() uint64 {
	return s.load().Cycle
}

// LoudnessDb returns the latest loudness.
func (s *ResultStore) LoudnessDb() float64 {
	return s.load().LoudnessDb
}

// FundamentalHz returns the latest fundamental, 0 when unvoiced.
func (s *ResultStore) FundamentalHz() float64 {
	return s.load().FundamentalHz
}

// Spectrum returns a copy of the latest magnitude spectrum.
func (s *ResultStore) Spectrum() analysis.MagnitudeSpectrum {
	return slices.Clone(s.load().Spectrum)
}

// SpectrumInNotes returns the latest spectrum with frequencies converted to
// MIDI note numbers. The DC bin has no note and is omitted.
func (s *ResultStore) SpectrumInNotes() analysis.MagnitudeSpectrum {
	spec := s.load().Spectrum
	out := make(analysis.MagnitudeSpectrum, 0, len(spec))
	for _, p := range spec {
		if p.FrequencyHz <= 0 {
			continue
		}
		out = append(out, analysis.Point{FrequencyHz: HzToMIDI(p.FrequencyHz), Value: p.Value})
	}
	return out
}

// Harmonics returns the latest harmonic gains. The array is copied by value.
func (s *ResultStore) Harmonics() analysis.HarmonicGains {
	return s.load().Harmonics
}

// Envelope returns a copy of the latest formant envelope.
func (s *ResultStore) Envelope() analysis.FormantEnvelope {
	return slices.Clone(s.load().Envelope)
}

// Formants returns a copy of the latest formant peaks, ascending.
func (s *ResultStore) Formants() []float64 {
	f := s.load().Formants
	if f == nil {
		return []float64{}
	}
	return slices.Clone(f)
}

// PitchHistory returns the pitch history, oldest first, in unit.
func (s *ResultStore) PitchHistory(unit PitchUnit) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Values(unit)
}
