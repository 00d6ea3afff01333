// Package ws delivers push payloads to connected clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/musterhq/muster/internal/services/readycheck/push"
)

// frame is one outbound WebSocket message.
type frame struct {
	Type    string       `json:"type"`
	Payload push.Payload `json:"payload"`
}

const frameTypeStatusUpdate = "status_update"

type peer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func (p *peer) writeFrame(f frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(f)
}

// Hub tracks connected client sessions per user and implements push.Pusher.
//
// A recipient with no connected session is dropped silently: delivery is
// best-effort and offline queuing is a non-goal.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*peer]struct{}
}

// NewHub creates an empty session hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*peer]struct{})}
}

// Handler returns the WebSocket subscribe endpoint. Clients identify
// themselves with a user_id query parameter and hold the connection open to
// receive status update frames.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()

		userID := strings.TrimSpace(conn.Request().URL.Query().Get("user_id"))
		if userID == "" {
			return
		}

		p := &peer{encoder: json.NewEncoder(conn)}
		h.register(userID, p)
		defer h.unregister(userID, p)

		// Hold the session open; inbound bytes are ignored.
		_, _ = io.Copy(io.Discard, conn)
	})
}

// Push writes one status update frame to every session of the recipient.
func (h *Hub) Push(_ context.Context, recipientID string, payload push.Payload) error {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return fmt.Errorf("recipient id is required")
	}

	h.mu.Lock()
	peers := make([]*peer, 0, len(h.subscribers[recipientID]))
	for p := range h.subscribers[recipientID] {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	var firstErr error
	for _, p := range peers {
		if err := p.writeFrame(frame{Type: frameTypeStatusUpdate, Payload: payload}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write status frame: %w", err)
		}
	}
	return firstErr
}

// SessionCount reports connected sessions for one user, for observability.
func (h *Hub) SessionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}

func (h *Hub) register(userID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.subscribers[userID]
	if !ok {
		sessions = make(map[*peer]struct{})
		h.subscribers[userID] = sessions
	}
	sessions[p] = struct{}{}
}

func (h *Hub) unregister(userID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.subscribers[userID]
	if !ok {
		return
	}
	delete(sessions, p)
	if len(sessions) == 0 {
		delete(h.subscribers, userID)
	}
}
