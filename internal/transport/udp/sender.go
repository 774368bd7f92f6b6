// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "vocalosc/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp sender is closed")

// Sender is the datagram sink used by the publisher. UDPSender is the real
// implementation; tests substitute a recorder.
type Sender interface {
	Send(data []byte) error
}

// UDPSender handles sending data packets over UDP.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // Protects conn during Close
	closed bool
}

var _ Sender = (*UDPSender)(nil)

// NewUDPSender creates a new UDPSender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9000".
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// Any local port will do for sending.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	applog.Infof("UDPSender: Sending to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits data as one datagram. It is safe for concurrent use.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	// Held across the write so Close cannot race it.
	_, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		// A missing receiver shows up as ECONNREFUSED on loopback; it is
		// expected whenever the receiver is not running.
		applog.Debugf("UDPSender: Error sending packet: %v", err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// LocalAddr returns the local address of the socket.
func (s *UDPSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the underlying UDP connection.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed
	}

	s.closed = true
	applog.Infof("UDPSender: Closing connection to %s", s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

// Ensure UDPSender satisfies the io.Closer interface.
var _ interface{ Close() error } = (*UDPSender)(nil)
