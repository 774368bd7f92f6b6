// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	"vocalosc/internal/analysis"
)

// Transport delivers each published snapshot to one destination.
// Published snapshots are immutable: implementations may hold on to them
// (for example to queue them) but must never modify them.
type Transport interface {
	Send(snap *analysis.FeatureSnapshot) error
	Close() error
}

// Fanout sends every snapshot to a fixed list of transports in order.
// A failing transport does not stop the others; the errors are joined.
type Fanout []Transport

// Send implements Transport.
func (f Fanout) Send(snap *analysis.FeatureSnapshot) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport, in reverse order.
func (f Fanout) Close() error {
	var errs []error
	for i := len(f) - 1; i >= 0; i-- {
		if err := f[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Fanout satisfies the interface at compile time.
var _ Transport = Fanout(nil)
