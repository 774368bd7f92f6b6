// SPDX-License-Identifier: MIT
package session

import (
	"math"
	"sync"

	"vocalosc/internal/config"
)

// AnalyzerOptions holds the settings a controller may change while a
// session runs. The analysis loop reads them once per cycle.
type AnalyzerOptions struct {
	mu          sync.RWMutex
	inputGainDb float64
}

// NewAnalyzerOptions returns options with the given initial gain.
func NewAnalyzerOptions(inputGainDb float64) *AnalyzerOptions {
	o := &AnalyzerOptions{}
	o.SetInputGainDb(inputGainDb)
	return o
}

// InputGainDb returns the current input gain in dB.
func (o *AnalyzerOptions) InputGainDb() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.inputGainDb
}

// SetInputGainDb sets the input gain, clamped to the supported range.
// NaN is ignored.
func (o *AnalyzerOptions) SetInputGainDb(db float64) {
	if math.IsNaN(db) {
		return
	}
	db = math.Max(config.MinInputGainDb, math.Min(config.MaxInputGainDb, db))
	o.mu.Lock()
	o.inputGainDb = db
	o.mu.Unlock()
}
