package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageHandler manages direct-message endpoints.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		hub:         hub,
		audit:       audit,
	}
}

// GetConversation returns paginated history with the given user, oldest
// first.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := c.GetInt("userID")

	key, err := conversation.Key(userID, peerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation"})
		return
	}

	limit, offset := paginationParams(c)
	msgs, err := h.messageRepo.ListConversation(c.Request.Context(), key, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	reactions, err := h.messageRepo.ReactionsFor(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	for i := range msgs {
		msgs[i].Reactions = reactions[msgs[i].ID]
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "limit": limit, "offset": offset})
}

// SendMessage validates, persists and broadcasts a new message.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ReceiverID  int    `json:"receiver_id" binding:"required"`
		Message     string `json:"message" binding:"required"`
		ClientToken string `json:"client_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	body := strings.TrimSpace(req.Message)
	if body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message body is empty"})
		return
	}

	key, err := conversation.Key(userID, req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver"})
		return
	}

	kind := models.KindText
	if strings.HasPrefix(body, "[File: ") {
		kind = models.KindFile
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), key, userID, req.ReceiverID, body, kind, req.ClientToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	observability.IncMessageStored(msg.Kind)

	// Persist happens-before broadcast.
	h.hub.Broadcast(key, models.ChatEvent{Type: models.EventMessageReceived, Message: &msg})
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flags a single message read, receiver-only.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can mark a message read"})
		return
	}

	if err := h.messageRepo.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark message read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkBatchRead flags all unread messages from one sender to the caller.
func (h *MessageHandler) MarkBatchRead(c *gin.Context) {
	var req struct {
		SenderID int `json:"sender_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	count, err := h.messageRepo.MarkBatchRead(c.Request.Context(), req.SenderID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark messages read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

// EditMessage replaces a message body, sender-only.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message body is empty"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can edit"})
		return
	}

	updated, err := h.messageRepo.EditMessage(c.Request.Context(), messageID, userID, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		return
	}

	h.hub.Broadcast(updated.ConversationID, models.ChatEvent{Type: models.EventMessageEdited, Message: &updated})
	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %d edited", messageID), requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusOK, updated)
}

// DeleteMessage hard-deletes a message, sender-only.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete"})
		return
	}

	if err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.ChatEvent{Type: models.EventMessageDeleted, MessageID: messageID})
	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %d deleted by sender", messageID), requestIDFromContext(c), userIDFromContext(c))
	c.Status(http.StatusNoContent)
}

// AddReaction upserts the caller's reaction on a message.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	reaction, err := h.messageRepo.UpsertReaction(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store reaction"})
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.ChatEvent{Type: models.EventReactionUpdated, MessageID: messageID, Reaction: &reaction})
	c.JSON(http.StatusOK, reaction)
}

// RemoveReaction deletes the caller's reaction on a message.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	if err := h.messageRepo.RemoveReaction(c.Request.Context(), messageID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrReactionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not remove reaction"})
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.ChatEvent{Type: models.EventReactionUpdated, MessageID: messageID, UserID: userID})
	c.Status(http.StatusNoContent)
}

func paginationParams(c *gin.Context) (int, int) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
