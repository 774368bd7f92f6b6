// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"vocalosc/internal/analysis"
	applog "vocalosc/internal/log"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Snapshots queued for broadcast; newer ones are dropped when full.
	broadcastQueue = 8
	writeTimeout   = 250 * time.Millisecond
)

// WebSocketTransport serves published snapshots as JSON text frames to any
// number of renderers connected at /ws. Slow consumers never stall the
// analysis loop: when the queue is full the snapshot is dropped.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan *analysis.FeatureSnapshot
	server    *http.Server
	listener  net.Listener

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64

	log *logrus.Entry
}

// NewWebSocketTransport listens on addr and starts serving. The listen
// error, if any, is returned directly.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for websocket feed on '%s': %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin: func(r *http.Request) bool {
				return true // Renderers are local tools served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan *analysis.FeatureSnapshot, broadcastQueue),
		listener:  ln,
		done:      make(chan struct{}),
		log:       applog.WithComponent("transport.websocket"),
	}
	wst.start()
	return wst, nil
}

// start begins the WebSocket server
func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		wst.log.Infof("Serving snapshots on ws://%s/ws", wst.listener.Addr())
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.WithError(err).Error("Server error")
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
}

// Addr returns the address the feed is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

// ClientCount returns the number of connected renderers.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns how many snapshots were discarded because the queue was
// full.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.WithError(err).Warn("Upgrade error")
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.WithField("remote", conn.RemoteAddr()).Infof("Client connected, total: %d", total)

	// The feed is one-way; reading only detects the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		wst.log.Infof("Client disconnected, total: %d", total)
	}
}

// handleBroadcasts encodes each queued snapshot once and writes it to every
// client.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case snap := <-wst.broadcast:
			data, err := json.Marshal(snap)
			if err != nil {
				wst.log.WithError(err).Error("Failed to encode snapshot")
				continue
			}
			msg, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
			if err != nil {
				wst.log.WithError(err).Error("Failed to prepare message")
				continue
			}

			wst.clientsMu.Lock()
			for client := range wst.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WritePreparedMessage(msg); err != nil {
					wst.log.WithError(err).Debug("Error sending to client")
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues snap for broadcast, dropping it when the queue is full.
func (wst *WebSocketTransport) Send(snap *analysis.FeatureSnapshot) error {
	select {
	case wst.broadcast <- snap:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close shuts down the server, disconnects every client and waits for the
// serving goroutines to exit.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.log.Info("Closing server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
