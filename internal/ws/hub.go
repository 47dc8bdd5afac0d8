package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
)

const wsRoutingKey = "ws_events.conversations"

// Hub maintains active websocket rooms keyed by conversation key.
type Hub struct {
	rooms     map[string]map[*websocket.Conn]ConnInfo
	mu        sync.RWMutex
	publisher rabbitmq.Publisher
}

// NewHub creates an empty hub. The publisher receives write-error events
// and may be a noop publisher.
func NewHub(publisher rabbitmq.Publisher) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*websocket.Conn]ConnInfo),
		publisher: publisher,
	}
}

// AddClient registers a websocket connection to a conversation room.
func (h *Hub) AddClient(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]ConnInfo)
	}
	h.rooms[room][conn] = info
}

// RemoveClient removes a connection, dropping the room once empty.
func (h *Hub) RemoveClient(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize reports how many connections are joined to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends the event to every connection in the room, including
// all of the sender's own connections for multi-device consistency.
func (h *Hub) Broadcast(room string, event models.ChatEvent) {
	h.broadcast(room, nil, event)
}

// BroadcastExcept sends the event to the room excluding one connection,
// used for typing signals which the originator does not need echoed.
func (h *Hub) BroadcastExcept(room string, except *websocket.Conn, event models.ChatEvent) {
	h.broadcast(room, except, event)
}

func (h *Hub) broadcast(room string, except *websocket.Conn, event models.ChatEvent) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]ConnInfo, len(h.rooms[room]))
	for conn, info := range h.rooms[room] {
		targets[conn] = info
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for conn, info := range targets {
		if conn == except {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(room, conn)
			h.publishWSError(room, info, err)
		}
	}
}

func (h *Hub) publishWSError(room string, info ConnInfo, err error) {
	observability.IncWSEvent("ws_error")
	_ = h.publisher.Publish(context.Background(), wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   observability.WSEventPayload(room, "ws_error", err.Error(), info.meta()),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
