// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"vocalosc/internal/analysis"
	applog "vocalosc/internal/log"
	"vocalosc/internal/params"
	"vocalosc/internal/transport"
)

// OSCPublisher encodes each published snapshot as one OSC bundle and sends
// it as a single datagram. Delivery is best effort: a failed send is
// counted and logged, and the next cycle carries on.
type OSCPublisher struct {
	sender  Sender
	encoder *params.Encoder
	now     func() time.Time

	sequenceNum atomic.Uint64 // Bundles handed to the sender.
	failures    atomic.Uint64 // Sends that returned an error.
	closeOnce   sync.Once
}

// NewOSCPublisher creates a publisher. It requires a sender and an encoder.
func NewOSCPublisher(sender Sender, encoder *params.Encoder) (*OSCPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("OSCPublisher: sender cannot be nil")
	}
	if encoder == nil {
		return nil, fmt.Errorf("OSCPublisher: encoder cannot be nil")
	}
	applog.Infof("OSCPublisher: Initializing (prefix %s)", encoder.Prefix())
	return &OSCPublisher{
		sender:  sender,
		encoder: encoder,
		now:     time.Now,
	}, nil
}

/*
Bundle layout, one datagram per analysis cycle:

	#bundle  timetag
	  <prefix>G1 .. G20     f   harmonic gains
	  <prefix>FT_L, FT_H    f   pitch, 14-bit split
	  <prefix>Fn_L, Fn_H    f   formant n (1..4), only for present peaks

All arguments are float32 in [0, 1].
*/

// Send implements transport.Transport.
func (p *OSCPublisher) Send(snap *analysis.FeatureSnapshot) error {
	data, err := p.encoder.Encode(snap, p.now())
	if err != nil {
		applog.Errorf("OSCPublisher: Error encoding cycle %d: %v", snap.Cycle, err)
		return err
	}

	seq := p.sequenceNum.Add(1)
	if err := p.sender.Send(data); err != nil {
		p.failures.Add(1)
		return fmt.Errorf("OSCPublisher: bundle %d: %w", seq, err)
	}
	if applog.DebugEnabled() {
		applog.Debugf("OSCPublisher: Sent bundle %d (%d bytes)", seq, len(data))
	}
	return nil
}

// Sequence returns the number of bundles sent so far.
func (p *OSCPublisher) Sequence() uint64 {
	return p.sequenceNum.Load()
}

// Failures returns the number of bundles the sender rejected.
func (p *OSCPublisher) Failures() uint64 {
	return p.failures.Load()
}

// Close closes the sender when it is closable.
func (p *OSCPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		applog.Debugf("OSCPublisher: Close called after %d bundles (%d failed)", p.Sequence(), p.Failures())
		if c, ok := p.sender.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// Ensure OSCPublisher satisfies the transport interface at compile time.
var _ transport.Transport = (*OSCPublisher)(nil)
