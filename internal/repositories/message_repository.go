package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrReactionNotFound = errors.New("reaction not found")
)

const messageColumns = `id, conversation_id, sender_id, receiver_id, body, kind, client_token, read, read_at, edited_at, created_at`

// MessageRepository defines interactions for direct messages and reactions.
type MessageRepository interface {
	CreateMessage(ctx context.Context, convKey string, senderID, receiverID int, body, kind string, clientToken string) (models.Message, error)
	ListConversation(ctx context.Context, convKey string, limit, offset int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkRead(ctx context.Context, messageID, receiverID int) error
	MarkBatchRead(ctx context.Context, senderID, receiverID int) (int, error)
	EditMessage(ctx context.Context, messageID, senderID int, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID, senderID int) error
	UpsertReaction(ctx context.Context, messageID, userID int, emoji string) (models.Reaction, error)
	RemoveReaction(ctx context.Context, messageID, userID int) error
	ReactionsFor(ctx context.Context, messageIDs []int) (map[int][]models.Reaction, error)
	UnreadSummary(ctx context.Context, userID int) (map[int]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. When clientToken is set, a retried send
// with the same token returns the originally stored row instead of
// inserting a duplicate.
func (r *MessageRepo) CreateMessage(ctx context.Context, convKey string, senderID, receiverID int, body, kind string, clientToken string) (models.Message, error) {
	var token *string
	if clientToken != "" {
		token = &clientToken
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, receiver_id, body, kind, client_token)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (sender_id, client_token) WHERE client_token IS NOT NULL DO NOTHING
        RETURNING `+messageColumns, convKey, senderID, receiverID, body, kind, token).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		// Duplicate client token: the first send won, hand back its row.
		err = r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE sender_id=$1 AND client_token=$2`, senderID, clientToken)
	}
	return msg, err
}

// ListConversation returns messages in creation order. Offset pagination is
// an accepted limitation: concurrent inserts can shift pages.
func (r *MessageRepo) ListConversation(ctx context.Context, convKey string, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`, convKey, limit, offset)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead flags a message read. The receiver scope in the WHERE clause is
// the ownership check; callers distinguish forbidden from missing by
// fetching first.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, receiverID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE, read_at = NOW()
        WHERE id=$1 AND receiver_id=$2 AND read = FALSE`, messageID, receiverID)
	return err
}

// MarkBatchRead flags all unread messages from one sender to the receiver
// and reports how many rows changed.
func (r *MessageRepo) MarkBatchRead(ctx context.Context, senderID, receiverID int) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE, read_at = NOW()
        WHERE sender_id=$1 AND receiver_id=$2 AND read = FALSE`, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// EditMessage replaces the body and stamps edited_at, sender-only.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID, senderID int, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET body=$1, edited_at=NOW()
        WHERE id=$2 AND sender_id=$3 RETURNING `+messageColumns, body, messageID, senderID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessage hard-deletes a message, sender-only. Reactions cascade.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID, senderID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1 AND sender_id=$2`, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// UpsertReaction stores the user's reaction, overwriting a previous emoji.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID, userID int, emoji string) (models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.QueryRowxContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji)
        VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji, updated_at = NOW()
        RETURNING message_id, user_id, emoji, updated_at`, messageID, userID, emoji).StructScan(&reaction)
	return reaction, err
}

// RemoveReaction deletes the user's reaction on a message.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID, userID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrReactionNotFound
	}
	return nil
}

// ReactionsFor loads reactions for a set of messages keyed by message id.
func (r *MessageRepo) ReactionsFor(ctx context.Context, messageIDs []int) (map[int][]models.Reaction, error) {
	result := make(map[int][]models.Reaction)
	if len(messageIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT message_id, user_id, emoji, updated_at FROM message_reactions WHERE message_id IN (?)`, messageIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var reactions []models.Reaction
	if err := r.db.SelectContext(ctx, &reactions, query, args...); err != nil {
		return nil, err
	}
	for _, reaction := range reactions {
		result[reaction.MessageID] = append(result[reaction.MessageID], reaction)
	}
	return result, nil
}

// UnreadSummary counts unread messages addressed to the user, per sender.
func (r *MessageRepo) UnreadSummary(ctx context.Context, userID int) (map[int]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT sender_id, COUNT(*) AS unread FROM messages
        WHERE receiver_id=$1 AND read = FALSE GROUP BY sender_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make(map[int]int)
	for rows.Next() {
		var senderID, unread int
		if err := rows.Scan(&senderID, &unread); err != nil {
			return nil, err
		}
		summary[senderID] = unread
	}
	return summary, rows.Err()
}
