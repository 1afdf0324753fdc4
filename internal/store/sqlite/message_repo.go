package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, attachments, reply_to_id, type, is_edited, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID,
		m.ConversationID,
		m.SenderID,
		m.Content,
		string(attachments),
		m.ReplyToID,
		string(m.Type),
		m.IsEdited,
		m.IsDeleted,
		nanos(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, attachments, reply_to_id, type, is_edited, is_deleted, created_at
		FROM messages
		WHERE id = ?
	`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// Page returns messages strictly older than the cursor, newest first.
// The (created_at, id) composite predicate matches the covering index and
// keeps pages gap- and duplicate-free under concurrent inserts.
func (r *MessageRepo) Page(ctx context.Context, conversationID string, before *domain.MessageCursor, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, attachments, reply_to_id, type, is_edited, is_deleted, created_at
		FROM messages
		WHERE conversation_id = ?
	`
	args := []any{conversationID}
	if before != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		n := nanos(before.CreatedAt)
		args = append(args, n, n, before.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id, content string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET content = ?, is_edited = 1
		WHERE id = ?
	`, content, id)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	return nil
}

// SoftDelete tombstones the message: content and attachments are cleared,
// the row stays so ordering and reply references survive.
func (r *MessageRepo) SoftDelete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_deleted = 1, content = '', attachments = '[]'
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var attachments string
	var msgType string
	var createdAt int64
	if err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Content,
		&attachments,
		&m.ReplyToID,
		&msgType,
		&m.IsEdited,
		&m.IsDeleted,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if attachments != "" && attachments != "[]" {
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	m.Type = domain.MessageType(msgType)
	m.CreatedAt = fromNanos(createdAt)
	return m, nil
}
