// SPDX-License-Identifier: MIT
package store

import (
	"math"
	"sync"
	"testing"

	"vocalosc/internal/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyHistoryFIFO(t *testing.T) {
	h := NewFrequencyHistory(4)
	for _, v := range []float64{100, 200, 300} {
		h.Push(v)
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{100, 200, 300}, h.Values(Hertz))

	for _, v := range []float64{400, 500, 600} {
		h.Push(v)
	}
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, h.Cap(), h.Len())
	assert.Equal(t, []float64{300, 400, 500, 600}, h.Values(Hertz))
}

func TestFrequencyHistoryMIDI(t *testing.T) {
	h := NewFrequencyHistory(3)
	h.Push(440)
	h.Push(Unvoiced)
	h.Push(261.6256)

	notes := h.Values(MIDINote)
	require.Len(t, notes, 3)
	assert.InDelta(t, 69, notes[0], 1e-9)
	assert.True(t, math.IsNaN(notes[1]))
	assert.InDelta(t, 60, notes[2], 1e-4)
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "A4", NoteName(69))
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "C#-1", NoteName(1))
	assert.Equal(t, "B4", NoteName(70.6))
	assert.Empty(t, NoteName(math.NaN()))
	assert.Empty(t, NoteName(-1))
	assert.InDelta(t, 440, MIDIToHz(HzToMIDI(440)), 1e-9)
}

func TestStoreBeforePublish(t *testing.T) {
	s := New(8)
	assert.Equal(t, analysis.LoudnessFloorDb, s.LoudnessDb())
	assert.Zero(t, s.FundamentalHz())
	assert.Empty(t, s.Spectrum())
	assert.NotNil(t, s.Formants())
	assert.Empty(t, s.PitchHistory(Hertz))
}

func TestStorePublishAndCopies(t *testing.T) {
	s := New(8)
	snap := &analysis.FeatureSnapshot{
		Cycle:         1,
		LoudnessDb:    -12,
		FundamentalHz: 220,
		Spectrum:      analysis.MagnitudeSpectrum{{FrequencyHz: 0, Value: 1}, {FrequencyHz: 440, Value: 2}},
		Envelope:      analysis.FormantEnvelope{{FrequencyHz: 0, Value: -3}},
		Formants:      []float64{700, 1200},
	}
	snap.Harmonics[0] = 0.5
	s.Publish(snap)
	s.Publish(&analysis.FeatureSnapshot{Cycle: 2, LoudnessDb: analysis.LoudnessFloorDb})

	assert.Equal(t, uint64(2), s.Cycle())
	assert.Equal(t, []float64{220, Unvoiced}, s.PitchHistory(Hertz))

	s.Publish(snap)
	spec := s.Spectrum()
	spec[1].Value = 99
	formants := s.Formants()
	formants[0] = 1
	got := s.Snapshot()
	got.Envelope[0].Value = 42

	assert.Equal(t, 2.0, s.Spectrum()[1].Value)
	assert.Equal(t, []float64{700, 1200}, s.Formants())
	assert.Equal(t, -3.0, s.Envelope()[0].Value)
	assert.Equal(t, 0.5, s.Harmonics()[0])

	notes := s.SpectrumInNotes()
	require.Len(t, notes, 1)
	assert.InDelta(t, 69, notes[0].FrequencyHz, 1e-9)
}

// makeSnapshot fills every field from the same cycle number so a reader
// can detect a mix of two publications.
func makeSnapshot(cycle uint64) *analysis.FeatureSnapshot {
	v := float64(cycle)
	snap := &analysis.FeatureSnapshot{
		Cycle:         cycle,
		LoudnessDb:    -v,
		FundamentalHz: v + 100,
		Spectrum:      make(analysis.MagnitudeSpectrum, 16),
		Envelope:      make(analysis.FormantEnvelope, 16),
		Formants:      []float64{v, v},
	}
	for i := range snap.Spectrum {
		snap.Spectrum[i] = analysis.Point{FrequencyHz: float64(i), Value: v}
		snap.Envelope[i] = analysis.Point{FrequencyHz: float64(i), Value: v}
	}
	for i := range snap.Harmonics {
		snap.Harmonics[i] = v
	}
	return snap
}

func consistent(snap *analysis.FeatureSnapshot) bool {
	v := float64(snap.Cycle)
	if snap.LoudnessDb != -v || snap.FundamentalHz != v+100 {
		return false
	}
	for _, p := range snap.Spectrum {
		if p.Value != v {
			return false
		}
	}
	for _, p := range snap.Envelope {
		if p.Value != v {
			return false
		}
	}
	for _, g := range snap.Harmonics {
		if g != v {
			return false
		}
	}
	for _, f := range snap.Formants {
		if f != v {
			return false
		}
	}
	return true
}

func TestStoreSnapshotAtomicity(t *testing.T) {
	const cycles = 2000
	s := New(64)
	s.Publish(makeSnapshot(1))

	var wg sync.WaitGroup
	done := make(chan struct{})
	torn := make(chan uint64, 8)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Snapshot()
				if !consistent(snap) {
					select {
					case torn <- snap.Cycle:
					default:
					}
					return
				}
				_ = s.PitchHistory(MIDINote)
			}
		}()
	}

	for c := uint64(2); c <= cycles; c++ {
		s.Publish(makeSnapshot(c))
	}
	close(done)
	wg.Wait()
	close(torn)

	for c := range torn {
		t.Errorf("reader observed a torn snapshot at cycle %d", c)
	}
	assert.Equal(t, uint64(cycles), s.Cycle())
	assert.Len(t, s.PitchHistory(Hertz), 64)
}
