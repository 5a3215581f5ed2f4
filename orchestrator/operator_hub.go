// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // operator consoles connect cross-origin behind the gateway
	},
}

// operatorConn is one live operator console connection.
type operatorConn struct {
	ws          *websocket.Conn
	writeMu     sync.Mutex
	connectedAt time.Time
}

func (c *operatorConn) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// OperatorHub is the websocket side of the operator channel. Consoles
// subscribe per conversation; the hub pushes frames to them and feeds their
// replies into the handoff bridge. Pushes are fire-and-forget: a dead or
// absent console never blocks a dispatch.
type OperatorHub struct {
	bridge *HandoffBridge

	mu    sync.RWMutex
	conns map[string][]*operatorConn
}

// NewOperatorHub creates a hub. The bridge may be set later via SetBridge
// to break the construction cycle between hub and bridge.
func NewOperatorHub() *OperatorHub {
	return &OperatorHub{
		conns: make(map[string][]*operatorConn),
	}
}

// SetBridge wires the handoff bridge that inbound operator replies resolve.
func (h *OperatorHub) SetBridge(bridge *HandoffBridge) {
	h.bridge = bridge
}

// Notify pushes a frame to every console subscribed to the conversation.
func (h *OperatorHub) Notify(conversationID string, frame OperatorFrame) {
	h.mu.RLock()
	conns := make([]*operatorConn, len(h.conns[conversationID]))
	copy(conns, h.conns[conversationID])
	h.mu.RUnlock()

	if len(conns) == 0 {
		log.Printf("[OperatorHub] No console connected for conversation %s, dropping %s frame", conversationID, frame.Type)
		return
	}

	for _, conn := range conns {
		if err := conn.send(frame); err != nil {
			log.Printf("[OperatorHub] Push to console failed for %s: %v", conversationID, err)
		}
	}
}

// operatorInbound is a frame received from an operator console.
type operatorInbound struct {
	Type     string                 `json:"type"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HandleWebSocket upgrades an operator console connection for one
// conversation and pumps its frames until it disconnects.
func (h *OperatorHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]
	if conversationID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[OperatorHub] WebSocket upgrade failed for %s: %v", conversationID, err)
		return
	}

	conn := &operatorConn{ws: ws, connectedAt: time.Now()}
	h.register(conversationID, conn)
	defer func() {
		h.unregister(conversationID, conn)
		_ = ws.Close()
	}()

	log.Printf("[OperatorHub] Console connected for conversation %s", conversationID)
	_ = conn.send(map[string]string{"type": "connected", "conversation_id": conversationID})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[OperatorHub] Console for %s closed unexpectedly: %v", conversationID, err)
			}
			return
		}

		var frame operatorInbound
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Printf("[OperatorHub] Discarding malformed frame from %s console: %v", conversationID, err)
			continue
		}

		switch frame.Type {
		case "human_response":
			resolved := false
			if h.bridge != nil {
				resolved = h.bridge.Resolve(conversationID, frame.Content, frame.Metadata)
			}
			_ = conn.send(map[string]interface{}{
				"type":     "ack",
				"resolved": resolved,
			})
		case "ping":
			_ = conn.send(map[string]string{"type": "pong"})
		default:
			log.Printf("[OperatorHub] Ignoring frame type %q from %s console", frame.Type, conversationID)
		}
	}
}

func (h *OperatorHub) register(conversationID string, conn *operatorConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conversationID] = append(h.conns[conversationID], conn)
}

func (h *OperatorHub) unregister(conversationID string, conn *operatorConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[conversationID]
	for i, c := range conns {
		if c == conn {
			h.conns[conversationID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[conversationID]) == 0 {
		delete(h.conns, conversationID)
	}
}

// ConnectedConversations returns the conversations with at least one
// console attached.
func (h *OperatorHub) ConnectedConversations() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}
