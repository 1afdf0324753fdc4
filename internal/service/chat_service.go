package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

// ChatService resolves conversations: the canonical direct conversation
// for a pair of users, group creation and maintenance, and the per-user
// chat list.
type ChatService struct {
	chats    domain.ChatRepository
	messages domain.MessageRepository
}

func NewChatService(chats domain.ChatRepository, messages domain.MessageRepository) *ChatService {
	return &ChatService{chats: chats, messages: messages}
}

// storeRetry is the bounded retry policy for durable writes.
func storeRetry(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithContext(b, ctx)
}

// retryWrite runs a durable write under the bounded retry policy. Only
// transient store contention is retried; any other failure is permanent
// since a retry would not change the outcome.
func retryWrite(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, storeRetry(ctx))
}

// isTransient reports whether a store error is worth retrying. sqlite
// surfaces writer contention as busy/locked errors.
func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// GetOrCreateDirect finds or creates the single direct conversation
// between a and b. Uniqueness is enforced by the store, so concurrent
// callers for the same pair converge on one conversation id.
func (s *ChatService) GetOrCreateDirect(ctx context.Context, a, b string) (*domain.Conversation, bool, error) {
	if a == "" || b == "" || a == b {
		return nil, false, fmt.Errorf("%w: direct conversation needs two distinct users", domain.ErrInvalidInput)
	}

	var (
		conv    *domain.Conversation
		created bool
	)
	op := func() error {
		var err error
		conv, created, err = s.chats.GetOrCreateDirect(ctx, a, b)
		return err
	}
	if err := retryWrite(ctx, op); err != nil {
		return nil, false, fmt.Errorf("%w: get-or-create conversation: %v", domain.ErrUnavailable, err)
	}
	return conv, created, nil
}

type GroupCreateInput struct {
	Name      string
	Avatar    *string
	MemberIDs []string
}

// CreateGroup creates a group conversation. The creator is always a
// member; fewer than two distinct members total is ErrInvalidMembership.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID string, in GroupCreateInput) (*domain.Conversation, error) {
	if creatorID == "" {
		return nil, domain.ErrInvalidMembership
	}

	seen := map[string]struct{}{creatorID: {}}
	members := []string{creatorID}
	for _, id := range in.MemberIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: a group needs at least two distinct members", domain.ErrInvalidMembership)
	}

	name := in.Name
	conv := &domain.Conversation{
		Name:   &name,
		Avatar: in.Avatar,
	}
	op := func() error {
		return s.chats.CreateGroup(ctx, conv, members)
	}
	if err := retryWrite(ctx, op); err != nil {
		return nil, fmt.Errorf("%w: create group: %v", domain.ErrUnavailable, err)
	}
	return conv, nil
}

type GroupUpdateInput struct {
	Name          *string
	Avatar        *string
	AddMembers    []string
	RemoveMembers []string
}

// UpdateGroup mutates group metadata and membership. The caller must be a
// current participant. The whole update is validated before any write: a
// rejected update leaves the group untouched.
func (s *ChatService) UpdateGroup(ctx context.Context, callerID, groupID string, in GroupUpdateInput) (*domain.Conversation, error) {
	conv, err := s.chats.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if conv == nil || !conv.IsGroup {
		return nil, domain.ErrNotFound
	}

	isParticipant, err := s.chats.IsParticipant(ctx, groupID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}

	// Check the prospective membership against the two-member floor
	// before touching the store.
	if len(in.AddMembers) > 0 || len(in.RemoveMembers) > 0 {
		current, err := s.chats.ListParticipants(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		prospective := make(map[string]struct{}, len(current))
		for _, p := range current {
			prospective[p.ID] = struct{}{}
		}
		for _, uid := range in.AddMembers {
			if uid != "" {
				prospective[uid] = struct{}{}
			}
		}
		for _, uid := range in.RemoveMembers {
			delete(prospective, uid)
		}
		if len(prospective) < 2 {
			return nil, fmt.Errorf("%w: a group needs at least two members", domain.ErrInvalidMembership)
		}
	}

	if in.Name != nil || in.Avatar != nil {
		if err := s.chats.UpdateGroupMeta(ctx, groupID, in.Name, in.Avatar); err != nil {
			return nil, fmt.Errorf("update group meta: %w", err)
		}
	}
	if len(in.AddMembers) > 0 {
		if err := s.chats.AddParticipants(ctx, groupID, in.AddMembers); err != nil {
			return nil, fmt.Errorf("add members: %w", err)
		}
	}
	for _, uid := range in.RemoveMembers {
		if err := s.chats.RemoveParticipant(ctx, groupID, uid); err != nil {
			return nil, fmt.Errorf("remove member: %w", err)
		}
	}

	updated, err := s.chats.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("reload group: %w", err)
	}
	return updated, nil
}

// ListForUser returns the user's conversations as summaries, most recent
// activity first, each with participants, last message and unread count.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	convs, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	res := make([]*domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary := &domain.ConversationSummary{Conversation: *c}

		participants, err := s.chats.ListParticipants(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		summary.Participants = participants

		if c.LastMessageID != nil {
			last, err := s.messages.GetByID(ctx, *c.LastMessageID)
			if err != nil {
				return nil, fmt.Errorf("get last message: %w", err)
			}
			summary.LastMessage = last
		}

		unread, err := s.chats.UnreadCount(ctx, c.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("unread count: %w", err)
		}
		summary.UnreadCount = unread

		res = append(res, summary)
	}
	return res, nil
}

// Participants returns user IDs of all conversation participants, used by
// the connection layer for broadcasts.
func (s *ChatService) ParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	participants, err := s.chats.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return ids, nil
}

// MarkRead resets the caller's unread state for the conversation.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID string) error {
	isParticipant, err := s.chats.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return domain.ErrForbidden
	}
	return s.chats.MarkRead(ctx, conversationID, userID, time.Now().UTC())
}
