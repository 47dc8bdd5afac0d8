package models

import "time"

// OnlineUser is one entry of the online/offline listing with unread counts.
type OnlineUser struct {
	ID           int        `json:"id"`
	DisplayName  string     `json:"display_name"`
	IsOnline     bool       `json:"is_online"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	UnreadCount  int        `json:"unread_count"`
}

// TypingStatus is the polled answer to "is this user typing to me".
type TypingStatus struct {
	UserID int  `json:"user_id"`
	Typing bool `json:"typing"`
}
