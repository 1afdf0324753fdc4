package ws

import (
	"errors"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

// Intent is the closed set of inbound event types. The dispatcher
// matches it exhaustively; anything else is answered with an error event.
type Intent string

const (
	IntentJoin          Intent = "join"
	IntentLogout        Intent = "logout"
	IntentFollow        Intent = "follow"
	IntentUnfollow      Intent = "unfollow"
	IntentOnlineSet     Intent = "online_set"
	IntentChats         Intent = "chats"
	IntentSendMessage   Intent = "send_message"
	IntentMessagePage   Intent = "message_page"
	IntentEditMessage   Intent = "edit_message"
	IntentDeleteMessage Intent = "delete_message"
	IntentMarkRead      Intent = "mark_read"
	IntentCreateGroup   Intent = "create_group"
	IntentUpdateGroup   Intent = "update_group"
	IntentTyping        Intent = "typing"
)

// Inbound is the wire envelope, decoded exactly once at the connection
// boundary. Fields are a union over all intents; each handler reads only
// the ones its intent defines.
type Inbound struct {
	Type Intent `json:"type"`

	// join
	Token string `json:"token,omitempty"`

	// follow / unfollow / direct send target
	TargetID string `json:"target_id,omitempty"`

	// online_set
	UserIDs []string `json:"user_ids,omitempty"`

	// conversation-scoped intents
	ConversationID string `json:"conversation_id,omitempty"`

	// send_message / edit_message
	Content     string              `json:"content,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
	ReplyTo     *string             `json:"reply_to,omitempty"`
	MessageType domain.MessageType  `json:"message_type,omitempty"`
	MessageID   string              `json:"message_id,omitempty"`

	// message_page
	Before *domain.MessageCursor `json:"before,omitempty"`
	Limit  int                   `json:"limit,omitempty"`

	// create_group / update_group
	Name          *string  `json:"name,omitempty"`
	Avatar        *string  `json:"avatar,omitempty"`
	MemberIDs     []string `json:"member_ids,omitempty"`
	AddMembers    []string `json:"add_members,omitempty"`
	RemoveMembers []string `json:"remove_members,omitempty"`
}

// Outbound event types.
const (
	EventBound               = "bound"
	EventError               = "error"
	EventLoggedOut           = "logged_out"
	EventChats               = "chats"
	EventMessage             = "message"
	EventMessagePage         = "message_page"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventMessagesRead        = "messages_read"
	EventConversationCreated = "conversation_created"
	EventGroupUpdated        = "group_updated"
	EventPresenceChanged     = "presence_changed"
	EventOnlineSet           = "online_set"
	EventFollowed            = "followed"
	EventUnfollowed          = "unfollowed"
	EventTyping              = "typing"
)

// Outbound is the envelope for everything the server emits: acks,
// broadcasts, and typed errors.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`

	// Error fields; Req echoes the intent the error answers.
	Req     Intent `json:"req,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func event(eventType string, payload any) *Outbound {
	return &Outbound{Type: eventType, Payload: payload}
}

func errorEvent(req Intent, err error) *Outbound {
	return &Outbound{
		Type:    EventError,
		Req:     req,
		Code:    errCode(err),
		Message: err.Error(),
	}
}

// errCode maps domain errors onto stable wire codes.
func errCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidMembership):
		return "invalid_membership"
	case errors.Is(err, domain.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, domain.ErrIdentityConflict):
		return "identity_conflict"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
