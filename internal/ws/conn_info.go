package ws

import (
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/observability"
)

// ConnInfo describes one websocket connection for events and cleanup.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) meta() observability.WSConnMeta {
	return observability.WSConnMeta{
		ConnID:      i.ConnID,
		UserID:      i.UserID,
		DeviceID:    i.DeviceID,
		IP:          i.IP,
		ConnectedAt: i.ConnectedAt,
	}
}

func newConnID() string {
	return uuid.NewString()
}
