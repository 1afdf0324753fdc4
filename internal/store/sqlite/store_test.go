package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

func newTestDB(t *testing.T) *ChatRepo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	return NewChatRepo(db)
}

// seedUser inserts a user the FK constraints require.
func seedUser(t *testing.T, r *ChatRepo, id, username string) {
	t.Helper()
	users := NewUserRepo(r.db)
	require.NoError(t, users.Create(context.Background(), &domain.User{
		ID:             id,
		Username:       username,
		HashedPassword: "x",
		IsActive:       true,
	}))
}
