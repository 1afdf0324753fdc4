package domain

import (
	"context"
	"time"
)

// MessageCursor is a pagination position: pages return messages strictly
// older than (CreatedAt, ID) in descending order. The composite keeps the
// ordering total even when two messages share a timestamp.
type MessageCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// UserRepository defines persistence operations for users. This is the
// narrow surface of the external account system the chat core consumes.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*User, error)
	SetLastSeen(ctx context.Context, id string, at time.Time) error
}

// ChatRepository defines persistence operations for conversations and
// their participants.
type ChatRepository interface {
	// GetOrCreateDirect resolves the single direct conversation for the
	// unordered pair {a, b}, creating it atomically if absent. The store
	// enforces uniqueness; under a concurrent race exactly one row is
	// created and both callers observe it. created reports whether this
	// call inserted the row.
	GetOrCreateDirect(ctx context.Context, a, b string) (conv *Conversation, created bool, err error)

	CreateGroup(ctx context.Context, c *Conversation, memberIDs []string) error
	GetByID(ctx context.Context, id string) (*Conversation, error)
	UpdateGroupMeta(ctx context.Context, id string, name, avatar *string) error
	AddParticipants(ctx context.Context, conversationID string, userIDs []string) error
	RemoveParticipant(ctx context.Context, conversationID, userID string) error

	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
	ListParticipants(ctx context.Context, conversationID string) ([]*User, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error
	UnreadCount(ctx context.Context, conversationID, userID string) (int, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// Page returns up to limit messages of the conversation strictly older
	// than before (or the newest page when before is nil), ordered by
	// (created_at, id) descending.
	Page(ctx context.Context, conversationID string, before *MessageCursor, limit int) ([]*Message, error)
	UpdateContent(ctx context.Context, id, content string) error
	SoftDelete(ctx context.Context, id string) error
}

// FollowRepository defines the persisted social-graph relationship state.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followeeID string) error
	Delete(ctx context.Context, followerID, followeeID string) error
	ListFollowers(ctx context.Context, userID string) ([]string, error)
	ListFollowing(ctx context.Context, userID string) ([]string, error)
}
