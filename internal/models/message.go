package models

import "time"

// Message kinds. File messages carry the upload convention in the body.
const (
	KindText = "text"
	KindFile = "file"
)

// Message represents a direct message between two users.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	ReceiverID     int        `db:"receiver_id" json:"receiver_id"`
	Body           string     `db:"body" json:"body"`
	Kind           string     `db:"kind" json:"kind"`
	ClientToken    *string    `db:"client_token" json:"-"`
	Read           bool       `db:"read" json:"read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	EditedAt       *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	Reactions []Reaction `db:"-" json:"reactions,omitempty"`
}

// Reaction is a single emoji reaction. At most one row exists per
// (message, user); a second reaction from the same user overwrites it.
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ChatEvent is broadcasted through websockets.
type ChatEvent struct {
	Type      string    `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	UserID    int       `json:"user_id,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Client-originated websocket event types.
const (
	EventJoinConversation = "join-conversation"
	EventSendMessage      = "send-message"
	EventTyping           = "typing"
	EventStopTyping       = "stop-typing"
)

// Server-originated websocket event types.
const (
	EventMessageReceived   = "message-received"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventMessageEdited     = "message-edited"
	EventMessageDeleted    = "message-deleted"
	EventReactionUpdated   = "reaction-updated"
)
