// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"

	"vocalosc/internal/analysis"
	applog "vocalosc/internal/log"
	"vocalosc/internal/params"

	"github.com/sirupsen/logrus"
)

// LoggingTransport writes every cycle's outbound parameters to the debug
// log. It is used to inspect the parameter stream without a receiver.
type LoggingTransport struct {
	encoder *params.Encoder
	log     *logrus.Entry
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport(encoder *params.Encoder) *LoggingTransport {
	lt := &LoggingTransport{
		encoder: encoder,
		log:     applog.WithComponent("transport.log"),
	}
	lt.log.Info("Using LoggingTransport")
	return lt
}

// Send logs the snapshot's parameters. It never fails.
func (lt *LoggingTransport) Send(snap *analysis.FeatureSnapshot) error {
	if !applog.DebugEnabled() {
		return nil
	}
	var b strings.Builder
	for i, p := range lt.encoder.Parameters(snap) {
		if i > 0 {
			b.WriteByte(' ')
		}
		name := strings.TrimPrefix(p.Name, lt.encoder.Prefix())
		fmt.Fprintf(&b, "%s=%.4f", name, p.Value)
	}
	lt.log.WithFields(logrus.Fields{
		"cycle":    snap.Cycle,
		"f0":       snap.FundamentalHz,
		"formants": len(snap.Formants),
	}).Debug(b.String())
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debug("Close called")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
