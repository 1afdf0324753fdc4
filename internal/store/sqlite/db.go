package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN. The foreign-key and
// busy-timeout pragmas are passed through the DSN so they apply to every
// connection in the pool, not just the one a plain Exec would run on.
func Open(dsn string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. Idempotent CREATE TABLE / CREATE INDEX
// statements; timestamps are stored as integer unix nanoseconds so the
// (created_at, id) ordering of messages stays total.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			avatar TEXT,
			hashed_password VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at INTEGER NOT NULL,
			last_seen INTEGER NOT NULL
		);`,
		// pair_key is min(a,b)|max(a,b) for direct conversations, NULL for
		// groups. The partial unique index is what makes find-or-create of
		// a direct conversation race-free: concurrent inserts for the same
		// pair collide here and exactly one row survives.
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			is_group BOOLEAN NOT NULL DEFAULT FALSE,
			name VARCHAR(100),
			avatar TEXT,
			pair_key TEXT,
			last_message_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair_key
			ON conversations(pair_key) WHERE pair_key IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			last_read_at INTEGER DEFAULT NULL,
			joined_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, conversation_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			attachments TEXT NOT NULL DEFAULT '[]',
			reply_to_id TEXT,
			type TEXT NOT NULL DEFAULT 'text',
			is_edited BOOLEAN NOT NULL DEFAULT 0,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (sender_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL,
			followee_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (follower_id, followee_id),
			FOREIGN KEY (follower_id) REFERENCES users(id),
			FOREIGN KEY (followee_id) REFERENCES users(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_conv ON conversation_participants(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// nanos converts a time to its stored integer form.
func nanos(t time.Time) int64 {
	return t.UnixNano()
}

// fromNanos converts a stored integer timestamp back to UTC time.
func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
