package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

// pairKey builds the canonical key for an unordered pair of user IDs.
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// GetOrCreateDirect inserts the direct conversation for {a, b} unless one
// already exists. The insert goes through the pair_key unique index, so a
// concurrent caller with the same pair either wins the insert or falls
// through to the select and observes the winner's row.
func (r *ChatRepo) GetOrCreateDirect(ctx context.Context, a, b string) (*domain.Conversation, bool, error) {
	key := pairKey(a, b)
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, is_group, pair_key, created_at, updated_at)
		VALUES (?, 0, ?, ?, ?)
		ON CONFLICT(pair_key) WHERE pair_key IS NOT NULL DO NOTHING
	`, uuid.NewString(), key, nanos(now), nanos(now))
	if err != nil {
		return nil, false, fmt.Errorf("insert direct conversation: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	c := &domain.Conversation{}
	var createdAt, updatedAt int64
	err = r.db.QueryRowContext(ctx, `
		SELECT id, is_group, name, avatar, last_message_id, created_at, updated_at
		FROM conversations
		WHERE pair_key = ?
	`, key).Scan(&c.ID, &c.IsGroup, &c.Name, &c.Avatar, &c.LastMessageID, &createdAt, &updatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("select direct conversation: %w", err)
	}
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)

	// Idempotent for the race loser: its membership rows already exist.
	for _, uid := range []string{a, b} {
		if _, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_participants (user_id, conversation_id, joined_at)
			VALUES (?, ?, ?)
		`, uid, c.ID, nanos(now)); err != nil {
			return nil, false, fmt.Errorf("insert participant: %w", err)
		}
	}

	return c, inserted == 1, nil
}

func (r *ChatRepo) CreateGroup(ctx context.Context, c *domain.Conversation, memberIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.IsGroup = true
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, is_group, name, avatar, created_at, updated_at)
		VALUES (?, 1, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Avatar, nanos(now), nanos(now)); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_participants (user_id, conversation_id, joined_at)
			VALUES (?, ?, ?)
		`, uid, c.ID, nanos(now)); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ChatRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, is_group, name, avatar, last_message_id, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.IsGroup, &c.Name, &c.Avatar, &c.LastMessageID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	return c, nil
}

// UpdateGroupMeta patches name and avatar. updated_at is deliberately
// left alone: the chat list orders by it as last-message activity, and a
// rename is not activity.
func (r *ChatRepo) UpdateGroupMeta(ctx context.Context, id string, name, avatar *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET name = COALESCE(?, name),
		    avatar = COALESCE(?, avatar)
		WHERE id = ? AND is_group = 1
	`, name, avatar, id)
	if err != nil {
		return fmt.Errorf("update group meta: %w", err)
	}
	return nil
}

func (r *ChatRepo) AddParticipants(ctx context.Context, conversationID string, userIDs []string) error {
	now := nanos(time.Now().UTC())
	for _, uid := range userIDs {
		if _, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_participants (user_id, conversation_id, joined_at)
			VALUES (?, ?, ?)
		`, uid, conversationID, now); err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
	}
	return nil
}

func (r *ChatRepo) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.is_group, c.name, c.avatar, c.last_message_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.IsGroup, &c.Name, &c.Avatar, &c.LastMessageID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = fromNanos(createdAt)
		c.UpdatedAt = fromNanos(updatedAt)
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ChatRepo) ListParticipants(ctx context.Context, conversationID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar, u.hashed_password, u.is_active, u.created_at, u.last_seen
		FROM users u
		JOIN conversation_participants cp ON cp.user_id = u.id
		WHERE cp.conversation_id = ?
		ORDER BY u.username ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		var createdAt, lastSeen int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar, &u.HashedPassword, &u.IsActive, &createdAt, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		u.CreatedAt = fromNanos(createdAt)
		u.LastSeen = fromNanos(lastSeen)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *ChatRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1
		FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is participant: %w", err)
	}
	return true, nil
}

func (r *ChatRepo) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_id = ?, updated_at = ?
		WHERE id = ?
	`, messageID, nanos(at), conversationID)
	if err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	return nil
}

func (r *ChatRepo) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_at = ?
		WHERE conversation_id = ? AND user_id = ?
	`, nanos(at), conversationID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (r *ChatRepo) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	var lastRead sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_read_at
		FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&lastRead)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get last_read_at: %w", err)
	}

	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND sender_id <> ? AND is_deleted = 0
	`
	args := []any{conversationID, userID}
	if lastRead.Valid {
		query += " AND created_at > ?"
		args = append(args, lastRead.Int64)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
