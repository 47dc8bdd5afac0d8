package handlers

import (
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

// PresenceHandler serves heartbeat, typing and online-listing endpoints.
// All presence writes are best-effort: failures are logged, never surfaced,
// so a flaky redis cannot block messaging.
type PresenceHandler struct {
	userRepo    repositories.UserRepository
	messageRepo repositories.MessageRepository
	tracker     presence.Tracker
	typing      presence.TypingSignals
	window      time.Duration

	now func() time.Time
}

// NewPresenceHandler builds a PresenceHandler with the canonical presence
// staleness window.
func NewPresenceHandler(userRepo repositories.UserRepository, messageRepo repositories.MessageRepository, tracker presence.Tracker, typing presence.TypingSignals, window time.Duration) *PresenceHandler {
	return &PresenceHandler{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		tracker:     tracker,
		typing:      typing,
		window:      window,
		now:         time.Now,
	}
}

// Heartbeat refreshes the caller's last-activity timestamp.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID := c.GetInt("userID")
	if err := h.tracker.Heartbeat(c.Request.Context(), userID); err != nil {
		log.Printf("presence heartbeat for user %d: %v", userID, err)
	}
	observability.IncHeartbeat()
	c.Status(http.StatusNoContent)
}

// OnlineUsersList joins the user directory against presence and unread
// counts. Ordering: online first, then unread count descending, then
// display name.
func (h *PresenceHandler) OnlineUsersList(c *gin.Context) {
	userID := c.GetInt("userID")

	users, err := h.userRepo.ListOthers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	ids := make([]int, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	activities, err := h.tracker.LastActivities(c.Request.Context(), ids)
	if err != nil {
		// Presence is advisory; render everyone offline rather than fail.
		log.Printf("presence lookup: %v", err)
		activities = map[int]time.Time{}
	}

	unread, err := h.messageRepo.UnreadSummary(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
		return
	}

	now := h.now()
	list := make([]models.OnlineUser, 0, len(users))
	for _, u := range users {
		entry := models.OnlineUser{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			UnreadCount: unread[u.ID],
		}
		if last, ok := activities[u.ID]; ok {
			lastCopy := last
			entry.LastActivity = &lastCopy
			entry.IsOnline = presence.OnlineWithin(last, now, h.window)
		}
		list = append(list, entry)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsOnline != list[j].IsOnline {
			return list[i].IsOnline
		}
		if list[i].UnreadCount != list[j].UnreadCount {
			return list[i].UnreadCount > list[j].UnreadCount
		}
		return list[i].DisplayName < list[j].DisplayName
	})

	c.JSON(http.StatusOK, gin.H{"users": list})
}

// StartTyping refreshes the caller's typing signal toward a receiver.
func (h *PresenceHandler) StartTyping(c *gin.Context) {
	userID, receiverID, ok := typingPair(c)
	if !ok {
		return
	}
	if err := h.typing.StartTyping(c.Request.Context(), userID, receiverID); err != nil {
		log.Printf("typing signal refresh: %v", err)
	}
	c.Status(http.StatusNoContent)
}

// StopTyping clears the caller's typing signal toward a receiver.
func (h *PresenceHandler) StopTyping(c *gin.Context) {
	userID, receiverID, ok := typingPair(c)
	if !ok {
		return
	}
	if err := h.typing.StopTyping(c.Request.Context(), userID, receiverID); err != nil {
		log.Printf("typing signal clear: %v", err)
	}
	c.Status(http.StatusNoContent)
}

// TypingStatus answers whether the given user is typing to the caller.
func (h *PresenceHandler) TypingStatus(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := c.GetInt("userID")

	typing, err := h.typing.IsTyping(c.Request.Context(), peerID, userID)
	if err != nil {
		log.Printf("typing status lookup: %v", err)
		typing = false
	}
	c.JSON(http.StatusOK, models.TypingStatus{UserID: peerID, Typing: typing})
}

func typingPair(c *gin.Context) (int, int, bool) {
	var req struct {
		ReceiverID int `json:"receiver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}
	userID := c.GetInt("userID")
	if req.ReceiverID == userID || req.ReceiverID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver"})
		return 0, 0, false
	}
	return userID, req.ReceiverID, true
}
