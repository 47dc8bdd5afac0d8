// Package conversation derives the canonical key addressing a direct
// conversation between two users. The key is order-independent: both
// participants resolve the same room and message partition.
package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const separator = ":"

var (
	ErrSameParticipant = errors.New("conversation requires two distinct users")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrMalformedKey    = errors.New("malformed conversation key")
)

// Key returns the canonical key for the unordered pair {a, b}.
func Key(a, b int) (string, error) {
	if a <= 0 || b <= 0 {
		return "", ErrInvalidUserID
	}
	if a == b {
		return "", ErrSameParticipant
	}
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d%s%d", a, separator, b), nil
}

// Parse extracts the two participant ids from a key produced by Key.
func Parse(key string) (int, int, error) {
	parts := strings.Split(key, separator)
	if len(parts) != 2 {
		return 0, 0, ErrMalformedKey
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, ErrMalformedKey
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrMalformedKey
	}
	if a <= 0 || b <= 0 || a == b {
		return 0, 0, ErrMalformedKey
	}
	return a, b, nil
}

// Includes reports whether the user participates in the keyed conversation.
func Includes(key string, userID int) bool {
	a, b, err := Parse(key)
	if err != nil {
		return false
	}
	return a == userID || b == userID
}
