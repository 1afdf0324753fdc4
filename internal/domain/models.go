package domain

import "time"

// User represents an application user. Account management itself lives
// outside the chat core; chat only references users by ID and denormalizes
// the display fields (username, avatar) into its own payloads.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Avatar         *string   `db:"avatar" json:"avatar,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation represents a chat thread, either direct (exactly two
// participants, at most one per unordered pair) or a named group.
type Conversation struct {
	ID            string    `db:"id" json:"id"`
	IsGroup       bool      `db:"is_group" json:"is_group"`
	Name          *string   `db:"name" json:"name,omitempty"`
	Avatar        *string   `db:"avatar" json:"avatar,omitempty"`
	LastMessageID *string   `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Participant is the membership of a user in a conversation. LastReadAt
// drives the server-side unread counts used to reconcile clients after
// a reconnect.
type Participant struct {
	UserID         string     `db:"user_id" json:"user_id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	LastReadAt     *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `db:"joined_at" json:"joined_at"`
}

// MessageType tags the payload kind of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
	MessageLink  MessageType = "link"
)

// Attachment is a single file reference carried by a message.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Message is a single chat message. Immutable after creation except for
// edit (content replace, id and timestamp preserved) and soft delete
// (tombstone: content and attachments cleared, row retained for ordering).
type Message struct {
	ID             string       `db:"id" json:"id"`
	ConversationID string       `db:"conversation_id" json:"conversation_id"`
	SenderID       string       `db:"sender_id" json:"sender_id"`
	Content        string       `db:"content" json:"content"`
	Attachments    []Attachment `db:"attachments" json:"attachments,omitempty"`
	ReplyToID      *string      `db:"reply_to_id" json:"reply_to_id,omitempty"`
	Type           MessageType  `db:"type" json:"type"`
	IsEdited       bool         `db:"is_edited" json:"is_edited"`
	IsDeleted      bool         `db:"is_deleted" json:"is_deleted"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// Follow is a directed relationship in the social graph.
type Follow struct {
	FollowerID string    `db:"follower_id" json:"follower_id"`
	FolloweeID string    `db:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is a conversation enriched with everything a chat
// list needs: participants with display data, the last message and the
// requesting user's unread count.
type ConversationSummary struct {
	Conversation
	Participants []*User  `json:"participants"`
	LastMessage  *Message `json:"last_message,omitempty"`
	UnreadCount  int      `json:"unread_count"`
}
