package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

type FollowRepo struct {
	db *sql.DB
}

func NewFollowRepo(db *sql.DB) *FollowRepo {
	return &FollowRepo{db: db}
}

var _ domain.FollowRepository = (*FollowRepo)(nil)

// Create is idempotent: following someone twice leaves a single row.
func (r *FollowRepo) Create(ctx context.Context, followerID, followeeID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO follows (follower_id, followee_id, created_at)
		VALUES (?, ?, ?)
	`, followerID, followeeID, nanos(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

func (r *FollowRepo) Delete(ctx context.Context, followerID, followeeID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM follows
		WHERE follower_id = ? AND followee_id = ?
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (r *FollowRepo) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT follower_id FROM follows WHERE followee_id = ?
	`, userID)
}

func (r *FollowRepo) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT followee_id FROM follows WHERE follower_id = ?
	`, userID)
}

func (r *FollowRepo) listIDs(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
