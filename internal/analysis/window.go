// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// SampleWindow is a fixed-length sliding window over the most recent samples.
//
// Samples are stored twice in a buffer of 2×size so the current window is
// always the contiguous slice buf[pos:pos+size]; Push writes each sample at
// both positions and View never copies. The window starts full of silence.
type SampleWindow struct {
	buf  []float64
	size int
	pos  int // index of the oldest sample
}

// NewSampleWindow returns a zero-filled window of size samples.
func NewSampleWindow(size int) (*SampleWindow, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	return &SampleWindow{
		buf:  make([]float64, 2*size),
		size: size,
	}, nil
}

// Push appends chunk, evicting len(chunk) of the oldest samples. Chunks longer
// than the window leave only their newest samples.
func (w *SampleWindow) Push(chunk []float32) {
	w.PushScaled(chunk, 1)
}

// PushScaled is Push with every sample multiplied by gain.
func (w *SampleWindow) PushScaled(chunk []float32, gain float64) {
	if len(chunk) > w.size {
		chunk = chunk[len(chunk)-w.size:]
	}
	for _, s := range chunk {
		v := float64(s) * gain
		w.buf[w.pos] = v
		w.buf[w.pos+w.size] = v
		w.pos++
		if w.pos == w.size {
			w.pos = 0
		}
	}
}

// View returns the window oldest-first. The slice aliases internal storage
// and is valid until the next Push.
func (w *SampleWindow) View() []float64 {
	return w.buf[w.pos : w.pos+w.size]
}

// Len returns the window length in samples.
func (w *SampleWindow) Len() int {
	return w.size
}

// Reset refills the window with silence.
func (w *SampleWindow) Reset() {
	clear(w.buf)
	w.pos = 0
}
