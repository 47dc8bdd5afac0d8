package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypingSignals maintains short-lived "user X is typing to user Y" state.
type TypingSignals interface {
	StartTyping(ctx context.Context, userID, receiverID int) error
	StopTyping(ctx context.Context, userID, receiverID int) error
	IsTyping(ctx context.Context, userID, receiverID int) (bool, error)
}

// RedisTypingSignals stores one key per (sender, receiver) pair whose TTL
// is the typing freshness window, so expiry needs no sweeper.
type RedisTypingSignals struct {
	client *redis.Client
	window time.Duration
}

// NewRedisTypingSignals constructs a RedisTypingSignals.
func NewRedisTypingSignals(client *redis.Client, window time.Duration) *RedisTypingSignals {
	return &RedisTypingSignals{client: client, window: window}
}

func typingKey(userID, receiverID int) string {
	return fmt.Sprintf("typing:%d:%d", userID, receiverID)
}

// StartTyping marks the pair fresh, refreshing the TTL on repeat calls.
func (s *RedisTypingSignals) StartTyping(ctx context.Context, userID, receiverID int) error {
	return s.client.Set(ctx, typingKey(userID, receiverID), "1", s.window).Err()
}

// StopTyping clears the signal immediately.
func (s *RedisTypingSignals) StopTyping(ctx context.Context, userID, receiverID int) error {
	return s.client.Del(ctx, typingKey(userID, receiverID)).Err()
}

// IsTyping reports whether the pair's signal is still fresh.
func (s *RedisTypingSignals) IsTyping(ctx context.Context, userID, receiverID int) (bool, error) {
	count, err := s.client.Exists(ctx, typingKey(userID, receiverID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
