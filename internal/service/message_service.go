package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

const (
	maxContentRunes = 5000
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageService owns message persistence semantics: append with
// participant and payload validation, cursor pagination, edit and soft
// delete with author-only authorization.
type MessageService struct {
	chats    domain.ChatRepository
	messages domain.MessageRepository
	users    domain.UserRepository
}

func NewMessageService(chats domain.ChatRepository, messages domain.MessageRepository, users domain.UserRepository) *MessageService {
	return &MessageService{
		chats:    chats,
		messages: messages,
		users:    users,
	}
}

type AppendInput struct {
	ConversationID string
	Content        string
	Attachments    []domain.Attachment
	ReplyToID      *string
	Type           domain.MessageType
}

// Append validates and persists a message, then moves the conversation's
// last-message pointer. Transient store failures are retried before
// surfacing ErrUnavailable; validation failures are returned as-is.
func (s *MessageService) Append(ctx context.Context, senderID string, in AppendInput) (*domain.Message, error) {
	if len([]rune(in.Content)) > maxContentRunes {
		return nil, fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidInput, maxContentRunes)
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 {
		return nil, domain.ErrEmptyMessage
	}

	conv, err := s.chats.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.chats.IsParticipant(ctx, in.ConversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}

	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageText
	}
	switch msgType {
	case domain.MessageText, domain.MessageImage, domain.MessageVideo, domain.MessageFile, domain.MessageLink:
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrInvalidInput, msgType)
	}

	msg := &domain.Message{
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		Content:        in.Content,
		Attachments:    in.Attachments,
		ReplyToID:      in.ReplyToID,
		Type:           msgType,
	}

	op := func() error {
		return s.messages.Create(ctx, msg)
	}
	if err := retryWrite(ctx, op); err != nil {
		return nil, fmt.Errorf("%w: append message: %v", domain.ErrUnavailable, err)
	}

	if err := s.chats.SetLastMessage(ctx, in.ConversationID, msg.ID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("set last message: %w", err)
	}
	return msg, nil
}

// MessagePage is one page of a conversation's history, newest first, with
// the cursor for the next (older) page when more remain.
type MessagePage struct {
	Messages   []*MessageView        `json:"messages"`
	NextCursor *domain.MessageCursor `json:"next_cursor,omitempty"`
}

// MessageView is a message with its reply reference resolved. ReplyTo is
// nil when the referenced message is gone; clients render that as
// "original message unavailable" rather than failing.
type MessageView struct {
	domain.Message
	Sender  *domain.User    `json:"sender,omitempty"`
	ReplyTo *domain.Message `json:"reply_to,omitempty"`
}

// Page returns messages strictly older than the cursor (or the newest
// page when the cursor is nil), descending, capped at limit.
func (s *MessageService) Page(ctx context.Context, requesterID, conversationID string, before *domain.MessageCursor, limit int) (*MessagePage, error) {
	conv, err := s.chats.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.chats.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	msgs, err := s.messages.Page(ctx, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}

	page := &MessagePage{Messages: make([]*MessageView, 0, len(msgs))}
	for _, m := range msgs {
		view, err := s.View(ctx, m)
		if err != nil {
			return nil, err
		}
		page.Messages = append(page.Messages, view)
	}
	if len(msgs) == limit {
		oldest := msgs[len(msgs)-1]
		page.NextCursor = &domain.MessageCursor{CreatedAt: oldest.CreatedAt, ID: oldest.ID}
	}
	return page, nil
}

// Edit replaces the content of a message. Only the original sender may
// edit; id and creation timestamp are preserved.
func (s *MessageService) Edit(ctx context.Context, callerID, messageID, newContent string) (*domain.Message, error) {
	if len([]rune(newContent)) > maxContentRunes {
		return nil, fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidInput, maxContentRunes)
	}
	if strings.TrimSpace(newContent) == "" {
		return nil, domain.ErrEmptyMessage
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil || msg.IsDeleted {
		return nil, domain.ErrNotFound
	}
	if msg.SenderID != callerID {
		return nil, domain.ErrForbidden
	}

	if err := s.messages.UpdateContent(ctx, messageID, newContent); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	msg.Content = newContent
	msg.IsEdited = true
	return msg, nil
}

// Delete tombstones a message under the same author-only rule as Edit.
func (s *MessageService) Delete(ctx context.Context, callerID, messageID string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if msg.SenderID != callerID {
		return nil, domain.ErrForbidden
	}

	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return nil, fmt.Errorf("soft delete: %w", err)
	}
	msg.IsDeleted = true
	msg.Content = ""
	msg.Attachments = nil
	return msg, nil
}

// View resolves a message's sender display data and reply reference.
func (s *MessageService) View(ctx context.Context, m *domain.Message) (*MessageView, error) {
	view := &MessageView{Message: *m}

	if u, err := s.users.GetByID(ctx, m.SenderID); err == nil && u != nil {
		view.Sender = u
	}

	if m.ReplyToID != nil {
		// Weak reference: a missing or tombstoned original degrades to nil.
		orig, err := s.messages.GetByID(ctx, *m.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("resolve reply: %w", err)
		}
		if orig != nil && !orig.IsDeleted {
			view.ReplyTo = orig
		}
	}
	return view, nil
}
