// SPDX-License-Identifier: MIT
// Package utils holds deterministic signal generators and small helpers shared
// by the analysis tests and benchmarks.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// PacketRecorder implements the datagram sender interface for testing. It
// keeps a copy of every packet instead of transmitting it.
type PacketRecorder struct {
	mu      sync.Mutex
	packets [][]byte
}

// Send stores the data for later inspection instead of transmitting.
func (r *PacketRecorder) Send(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.mu.Lock()
	r.packets = append(r.packets, cp)
	r.mu.Unlock()
	return nil
}

// Packets returns the recorded packets in send order.
func (r *PacketRecorder) Packets() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.packets))
	copy(out, r.packets)
	return out
}

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateHarmonicWave returns a tone at f0 whose k-th harmonic (k starting
// at 1) has amplitude amplitudes[k-1].
func GenerateHarmonicWave(size int, sampleRate, f0 float64, amplitudes []float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		var s float64
		for k, a := range amplitudes {
			s += a * math.Sin(2*math.Pi*f0*float64(k+1)*t)
		}
		buffer[i] = float32(s)
	}
	return buffer
}

// GenerateResonance drives a two-pole resonator at centerHz with white noise.
// radius sets the pole magnitude (bandwidth); the output is scaled to the
// given peak amplitude. The seed makes the sequence reproducible.
func GenerateResonance(size int, sampleRate, centerHz, radius, amplitude float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	theta := 2 * math.Pi * centerHz / sampleRate
	a1 := 2 * radius * math.Cos(theta)
	a2 := -radius * radius

	out := make([]float64, size)
	var y1, y2, peak float64
	for i := range out {
		y := rng.NormFloat64() + a1*y1 + a2*y2
		out[i] = y
		y2, y1 = y1, y
		if a := math.Abs(y); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		for i := range out {
			out[i] *= amplitude / peak
		}
	}
	return out
}

// Chunk splits signal into consecutive chunks of n samples, dropping any
// trailing partial chunk.
func Chunk(signal []float32, n int) [][]float32 {
	chunks := make([][]float32, 0, len(signal)/n)
	for start := 0; start+n <= len(signal); start += n {
		chunks = append(chunks, signal[start:start+n])
	}
	return chunks
}

// ToFloat32 narrows a float64 signal.
func ToFloat32(signal []float64) []float32 {
	out := make([]float32, len(signal))
	for i, v := range signal {
		out[i] = float32(v)
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
