package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.LastSeen = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, avatar, hashed_password, is_active, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Avatar, u.HashedPassword, u.IsActive, nanos(now), nanos(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepo) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	u := &domain.User{}
	var createdAt, lastSeen int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, username, avatar, hashed_password, is_active, created_at, last_seen
		FROM users
		WHERE %s = ?
	`, column), value).Scan(&u.ID, &u.Username, &u.Avatar, &u.HashedPassword, &u.IsActive, &createdAt, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	u.CreatedAt = fromNanos(createdAt)
	u.LastSeen = fromNanos(lastSeen)
	return u, nil
}

func (r *UserRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, username, avatar, hashed_password, is_active, created_at, last_seen
		FROM users
		WHERE id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		var createdAt, lastSeen int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar, &u.HashedPassword, &u.IsActive, &createdAt, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = fromNanos(createdAt)
		u.LastSeen = fromNanos(lastSeen)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) SetLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_seen = ? WHERE id = ?
	`, nanos(at), id)
	if err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}
