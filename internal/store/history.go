// SPDX-License-Identifier: MIT
package store

import (
	"fmt"
	"math"
)

// Unvoiced is the history sentinel for cycles without a fundamental.
const Unvoiced = 0.0

// PitchUnit selects how PitchHistory reports values.
type PitchUnit int

const (
	// Hertz reports raw frequencies; unvoiced entries are Unvoiced.
	Hertz PitchUnit = iota
	// MIDINote reports fractional MIDI note numbers (A4 = 69); unvoiced
	// entries are NaN so plots leave a gap.
	MIDINote
)

// FrequencyHistory is a fixed-capacity FIFO of fundamental frequencies.
// Pushing onto a full history evicts the oldest entry. It is not safe for
// concurrent use; ResultStore guards it.
type FrequencyHistory struct {
	buf   []float64
	start int
	n     int
}

// NewFrequencyHistory returns an empty history holding up to capacity values.
func NewFrequencyHistory(capacity int) *FrequencyHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &FrequencyHistory{buf: make([]float64, capacity)}
}

// Push appends hz, evicting the oldest value when full.
func (h *FrequencyHistory) Push(hz float64) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = hz
		h.n++
		return
	}
	h.buf[h.start] = hz
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored values.
func (h *FrequencyHistory) Len() int { return h.n }

// Cap returns the capacity.
func (h *FrequencyHistory) Cap() int { return len(h.buf) }

// Values returns a copy of the history, oldest first, converted to unit.
func (h *FrequencyHistory) Values(unit PitchUnit) []float64 {
	out := make([]float64, h.n)
	for i := range out {
		hz := h.buf[(h.start+i)%len(h.buf)]
		out[i] = ConvertPitch(hz, unit)
	}
	return out
}

// ConvertPitch converts a frequency in Hz to unit.
func ConvertPitch(hz float64, unit PitchUnit) float64 {
	switch unit {
	case MIDINote:
		if hz <= 0 {
			return math.NaN()
		}
		return HzToMIDI(hz)
	default:
		return hz
	}
}

// HzToMIDI returns the fractional MIDI note number of hz.
func HzToMIDI(hz float64) float64 {
	return 69 + 12*math.Log2(hz/440)
}

// MIDIToHz is the inverse of HzToMIDI.
func MIDIToHz(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the name of the nearest note, e.g. "A4" for note 69.
// Notes outside [0, 150] and NaN have no name.
func NoteName(note float64) string {
	if math.IsNaN(note) || note < 0 || note > 150 {
		return ""
	}
	n := int(math.Round(note))
	return fmt.Sprintf("%s%d", noteNames[n%12], n/12-1)
}
