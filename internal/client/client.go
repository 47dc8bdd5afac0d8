// Package client is a programmatic client for the messaging service,
// used by integration harnesses and service-side tooling. It mirrors the
// behavior expected of interactive clients: bounded retries on transient
// failures, idempotency tokens on sends, heartbeats while a conversation
// is open, and reconnect-with-backoff on the websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
)

// Options configures a Client. Zero values fall back to the defaults the
// service assumes elsewhere.
type Options struct {
	BaseURL string
	Token   string

	HTTPTimeout   time.Duration // default 30s
	RetryAttempts int           // default 3
	RetryStep     time.Duration // default 500ms, linear

	DialBase     time.Duration // default 500ms
	DialCap      time.Duration // default 10s
	DialAttempts int           // default 8

	HeartbeatInterval time.Duration // default 30s
	AutoReadDelay     time.Duration // default 2s
}

func (o *Options) applyDefaults() {
	if o.HTTPTimeout == 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = 3
	}
	if o.RetryStep == 0 {
		o.RetryStep = 500 * time.Millisecond
	}
	if o.DialBase == 0 {
		o.DialBase = 500 * time.Millisecond
	}
	if o.DialCap == 0 {
		o.DialCap = 10 * time.Second
	}
	if o.DialAttempts == 0 {
		o.DialAttempts = 8
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.AutoReadDelay == 0 {
		o.AutoReadDelay = 2 * time.Second
	}
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to the messaging service over HTTP and websocket.
type Client struct {
	opts Options
	http *http.Client

	mu     sync.Mutex
	conn   *websocket.Conn
	peerID int
	events chan models.ChatEvent
}

// New constructs a Client.
func New(opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		opts:   opts,
		http:   &http.Client{Timeout: opts.HTTPTimeout},
		events: make(chan models.ChatEvent, 64),
	}
}

// Events delivers pushed conversation events after Connect.
func (c *Client) Events() <-chan models.ChatEvent {
	return c.events
}

// History fetches a page of the conversation with the peer. Safe to
// retry; retried on transient failures.
func (c *Client) History(ctx context.Context, peerID, limit, offset int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := fmt.Sprintf("/messages/conversation/%d?limit=%d&offset=%d", peerID, limit, offset)
	if err := c.doRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Send stores a message. Each call carries a fresh idempotency token, so
// a timeout-then-retry cannot duplicate the message server-side.
func (c *Client) Send(ctx context.Context, receiverID int, text string) (models.Message, error) {
	req := map[string]any{
		"receiver_id":  receiverID,
		"message":      text,
		"client_token": uuid.NewString(),
	}
	var msg models.Message
	if err := c.doRetry(ctx, http.MethodPost, "/messages/send", req, &msg); err != nil {
		return models.Message{}, err
	}
	// The send ends any typing indicator.
	c.writeWS(models.EventStopTyping, 0)
	return msg, nil
}

// MarkBatchRead marks everything from the sender as read. A 403 is
// expected when rights have lapsed and is swallowed.
func (c *Client) MarkBatchRead(ctx context.Context, senderID int) (int, error) {
	var resp struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, http.MethodPut, "/messages/batch-read", map[string]any{"sender_id": senderID}, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// Heartbeat refreshes the caller's presence.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/messages/heartbeat", struct{}{}, nil)
}

// RunHeartbeat sends heartbeats on the configured cadence until the
// context ends. Failures are logged only; presence is best-effort.
func (c *Client) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	if err := c.Heartbeat(ctx); err != nil {
		log.Printf("heartbeat: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(ctx); err != nil {
				log.Printf("heartbeat: %v", err)
			}
		}
	}
}

// Typing signals the peer over the websocket.
func (c *Client) Typing() { c.writeWS(models.EventTyping, 0) }

// StopTyping clears the typing signal over the websocket.
func (c *Client) StopTyping() { c.writeWS(models.EventStopTyping, 0) }

// Connect dials the websocket with capped exponential backoff, joins the
// conversation room and starts pumping events. After the auto-read delay
// it marks the peer's messages read, mirroring a user who has the
// conversation on screen.
func (c *Client) Connect(ctx context.Context, peerID int) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.peerID = peerID
	c.mu.Unlock()

	if err := conn.WriteJSON(map[string]any{"type": models.EventJoinConversation, "peer_id": peerID}); err != nil {
		conn.Close()
		return fmt.Errorf("join conversation: %w", err)
	}

	go c.readPump(ctx, conn)
	go c.autoMarkRead(ctx, peerID)
	return nil
}

// Close tears the websocket down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := c.websocketURL()
	if err != nil {
		return nil, err
	}

	var conn *websocket.Conn
	operation := func() error {
		var dialErr error
		conn, _, dialErr = websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return dialErr
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newDialBackOff(c.opts.DialBase, c.opts.DialCap), uint64(c.opts.DialAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("websocket dial failed after %d attempts: %w", c.opts.DialAttempts, err)
	}
	return conn, nil
}

func (c *Client) websocketURL() (string, error) {
	parsed, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/ws/messages"
	parsed.RawQuery = "token=" + url.QueryEscape(c.opts.Token)
	return parsed.String(), nil
}

// readPump forwards pushed events and reconnects on failure. The
// transport offers no replay, so after every reconnect the fresh history
// page is fetched and replayed as message-received events.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		var event models.ChatEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("websocket read: %v, reconnecting", err)
			c.reconnect(ctx)
			return
		}
		select {
		case c.events <- event:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) reconnect(ctx context.Context) {
	c.mu.Lock()
	peerID := c.peerID
	c.conn = nil
	c.mu.Unlock()

	if err := c.Connect(ctx, peerID); err != nil {
		log.Printf("websocket reconnect: %v", err)
		return
	}

	msgs, err := c.History(ctx, peerID, 50, 0)
	if err != nil {
		log.Printf("history refetch after reconnect: %v", err)
		return
	}
	for i := range msgs {
		msg := msgs[i]
		select {
		case c.events <- models.ChatEvent{Type: models.EventMessageReceived, Message: &msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) autoMarkRead(ctx context.Context, peerID int) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.opts.AutoReadDelay):
	}
	if _, err := c.MarkBatchRead(ctx, peerID); err != nil {
		log.Printf("auto mark read: %v", err)
	}
}

func (c *Client) writeWS(eventType string, peerID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	payload := map[string]any{"type": eventType}
	if peerID != 0 {
		payload["peer_id"] = peerID
	}
	if err := c.conn.WriteJSON(payload); err != nil {
		log.Printf("websocket write: %v", err)
	}
}

// doRetry wraps do with the bounded retry policy. Only use for calls
// that are idempotent or carry an idempotency token.
func (c *Client) doRetry(ctx context.Context, method, path string, body, out any) error {
	operation := func() error {
		err := c.do(ctx, method, path, body, out)
		// 4xx outcomes are decisions, not transient faults.
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(c.opts.RetryStep), uint64(c.opts.RetryAttempts-1)),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strconv.Itoa(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
