package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

// ConversationWSHandler handles direct-message websocket connections.
type ConversationWSHandler struct {
	hub         *Hub
	messageRepo repositories.MessageRepository
	typing      presence.TypingSignals
	tokens      *auth.TokenService
	publisher   rabbitmq.Publisher
}

// NewConversationWSHandler constructs a ConversationWSHandler.
func NewConversationWSHandler(hub *Hub, messageRepo repositories.MessageRepository, typing presence.TypingSignals, tokens *auth.TokenService, publisher rabbitmq.Publisher) *ConversationWSHandler {
	return &ConversationWSHandler{
		hub:         hub,
		messageRepo: messageRepo,
		typing:      typing,
		tokens:      tokens,
		publisher:   publisher,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientEvent is the inbound wire format.
type clientEvent struct {
	Type        string `json:"type"`
	PeerID      int    `json:"peer_id,omitempty"`
	Text        string `json:"text,omitempty"`
	ClientToken string `json:"client_token,omitempty"`
}

// Handle upgrades the connection and runs the event loop. The connection
// starts unjoined; the first join-conversation event binds it to a room.
func (h *ConversationWSHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(ctx, "", "ws_connect", "", info)

	h.readLoop(ctx, conn, userID, info)
}

func (h *ConversationWSHandler) readLoop(ctx context.Context, conn *websocket.Conn, userID int, info ConnInfo) {
	var room string
	var closeReason string
	defer func() {
		if room != "" {
			h.hub.RemoveClient(room, conn)
		}
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(ctx, room, "ws_disconnect", closeReason, info)
		conn.Close()
	}()

	for {
		var event clientEvent
		if err := conn.ReadJSON(&event); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle(ctx, room, "ws_error", closeReason, info)
			}
			return
		}

		switch event.Type {
		case models.EventJoinConversation:
			key, err := conversation.Key(userID, event.PeerID)
			if err != nil {
				h.sendError(conn, "invalid peer id")
				continue
			}
			if room != "" {
				h.hub.RemoveClient(room, conn)
			}
			room = key
			h.hub.AddClient(room, conn, info)
			observability.IncWSEvent("ws_join")
			h.publishLifecycle(ctx, room, "ws_join", "", info)

		case models.EventSendMessage:
			if room == "" {
				h.sendError(conn, "join a conversation first")
				continue
			}
			body := strings.TrimSpace(event.Text)
			if body == "" {
				h.sendError(conn, "message body is empty")
				continue
			}
			peer := peerIn(room, userID)
			msg, err := h.messageRepo.CreateMessage(ctx, room, userID, peer, body, models.KindText, event.ClientToken)
			if err != nil {
				log.Printf("ws store message: %v", err)
				h.sendError(conn, "failed to store message")
				continue
			}
			observability.IncMessageStored(msg.Kind)
			// Persisted before broadcast: a client refetching history on
			// receipt always finds the message durable.
			h.hub.Broadcast(room, models.ChatEvent{Type: models.EventMessageReceived, Message: &msg})

		case models.EventTyping:
			if room == "" {
				continue
			}
			if err := h.typing.StartTyping(ctx, userID, peerIn(room, userID)); err != nil {
				log.Printf("typing signal refresh: %v", err)
			}
			h.hub.BroadcastExcept(room, conn, models.ChatEvent{Type: models.EventUserTyping, UserID: userID})

		case models.EventStopTyping:
			if room == "" {
				continue
			}
			if err := h.typing.StopTyping(ctx, userID, peerIn(room, userID)); err != nil {
				log.Printf("typing signal clear: %v", err)
			}
			h.hub.BroadcastExcept(room, conn, models.ChatEvent{Type: models.EventUserStoppedTyping, UserID: userID})

		default:
			h.sendError(conn, "unknown event type")
		}
	}
}

func (h *ConversationWSHandler) sendError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(models.ChatEvent{Type: "error", Error: msg}); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

func (h *ConversationWSHandler) publishLifecycle(ctx context.Context, room, event, reason string, info ConnInfo) {
	_ = h.publisher.Publish(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   observability.WSEventPayload(room, event, reason, info.meta()),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (h *ConversationWSHandler) validateToken(header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.tokens.ValidateToken(parts[1])
	}
	return 0, fmt.Errorf("invalid token")
}

// peerIn returns the other participant of a conversation room.
func peerIn(room string, userID int) int {
	a, b, err := conversation.Parse(room)
	if err != nil {
		return 0
	}
	if a == userID {
		return b
	}
	return a
}
