// Package presence keeps last-activity heartbeats and typing signals in
// redis. Both are ephemeral: presence staleness is derived from elapsed
// time and typing signals expire through key TTLs.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker records user activity and answers recency queries.
type Tracker interface {
	Heartbeat(ctx context.Context, userID int) error
	LastActivities(ctx context.Context, userIDs []int) (map[int]time.Time, error)
}

// RedisTracker is a redis-backed Tracker.
type RedisTracker struct {
	client *redis.Client
	window time.Duration
}

// NewRedisTracker constructs a RedisTracker. The window is the presence
// staleness window; keys are kept around twice that long so redis cleans
// up after inactive users on its own.
func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	return &RedisTracker{client: client, window: window}
}

func presenceKey(userID int) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// Heartbeat upserts the current timestamp as the user's last activity.
func (t *RedisTracker) Heartbeat(ctx context.Context, userID int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return t.client.Set(ctx, presenceKey(userID), now, 2*t.window).Err()
}

// LastActivities fetches heartbeat times for a set of users in one call.
func (t *RedisTracker) LastActivities(ctx context.Context, userIDs []int) (map[int]time.Time, error) {
	result := make(map[int]time.Time)
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, presenceKey(id))
	}

	vals, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue
		}
		last, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		result[userIDs[i]] = last
	}
	return result, nil
}

// OnlineWithin reports whether a last-activity time counts as online at
// the given instant. The boundary is strict: exactly one window of
// silence is already offline.
func OnlineWithin(last, now time.Time, window time.Duration) bool {
	return now.Sub(last) < window
}
