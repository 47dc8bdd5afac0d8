package observability

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// EventEnvelope wraps every event published to the message bus.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSConnMeta identifies a websocket connection in published events.
type WSConnMeta struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	ConnectedAt time.Time
}

// WSEventPayload builds the standard payload for websocket lifecycle events.
func WSEventPayload(room, event, reason string, meta WSConnMeta) map[string]interface{} {
	var durationMS int64
	if !meta.ConnectedAt.IsZero() {
		durationMS = time.Since(meta.ConnectedAt).Milliseconds()
	}
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"room":        room,
			"event":       event,
			"conn_id":     meta.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   meta.UserID,
			"device_id": meta.DeviceID,
			"ip":        meta.IP,
		},
	}
}

// BuildHeaders assembles AMQP headers for request correlation.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// DeviceIDFromRequest reads the client-reported device id, if any.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// RequestIDFromRequest reads the upstream request id, if any.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest resolves the client IP, preferring the forwarded chain.
func IPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
