package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/metrics"
	"github.com/Shiajyas/social-app-sub002/internal/service"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// session is the per-connection protocol state machine. It starts
// unauthenticated; a successful join binds it to a user through the
// presence registry. It routes intents to the services and fans results
// out; it holds no business logic of its own.
type session struct {
	conn     Sender
	registry *Registry
	accounts *service.AccountService
	chats    *service.ChatService
	messages *service.MessageService
	social   *service.SocialService
	log      *zap.Logger

	user *domain.User // nil while unauthenticated
}

// MakeHandler returns the HTTP handler for the /ws endpoint. Each
// upgraded connection gets its own session; all chat and social intents
// before a successful join are rejected with an unauthorized error event.
func MakeHandler(
	registry *Registry,
	accounts *service.AccountService,
	chats *service.ChatService,
	messages *service.MessageService,
	social *service.SocialService,
	allowedOrigins []string,
	log *zap.Logger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := newConn(wsConn)
		defer conn.Close()

		s := &session{
			conn:     conn,
			registry: registry,
			accounts: accounts,
			chats:    chats,
			messages: messages,
			social:   social,
			log:      log.With(zap.String("conn_id", conn.ID())),
		}
		// The request context ends with the connection; disconnect cleanup
		// runs on its own context.
		defer s.disconnect(context.Background())

		ctx := r.Context()
		for {
			var in Inbound
			if err := wsConn.ReadJSON(&in); err != nil {
				break
			}
			s.dispatch(ctx, &in)
		}
	}
}

func (s *session) send(out *Outbound) {
	if err := s.conn.Send(out); err != nil {
		s.log.Warn("send failed", zap.Error(err))
	}
}

// dispatch routes one decoded inbound event. The intent set is closed;
// unknown types get an error event, and everything except join requires
// a bound identity.
func (s *session) dispatch(ctx context.Context, in *Inbound) {
	if s.user == nil && in.Type != IntentJoin {
		s.send(errorEvent(in.Type, domain.ErrUnauthorized))
		return
	}

	switch in.Type {
	case IntentJoin:
		s.handleJoin(ctx, in)
	case IntentLogout:
		s.handleLogout(ctx)
	case IntentFollow:
		s.handleFollow(ctx, in)
	case IntentUnfollow:
		s.handleUnfollow(ctx, in)
	case IntentOnlineSet:
		s.send(event(EventOnlineSet, s.registry.OnlineSet(in.UserIDs)))
	case IntentChats:
		s.handleChats(ctx)
	case IntentSendMessage:
		s.handleSendMessage(ctx, in)
	case IntentMessagePage:
		s.handleMessagePage(ctx, in)
	case IntentEditMessage:
		s.handleEditMessage(ctx, in)
	case IntentDeleteMessage:
		s.handleDeleteMessage(ctx, in)
	case IntentMarkRead:
		s.handleMarkRead(ctx, in)
	case IntentCreateGroup:
		s.handleCreateGroup(ctx, in)
	case IntentUpdateGroup:
		s.handleUpdateGroup(ctx, in)
	case IntentTyping:
		s.handleTyping(ctx, in)
	default:
		s.send(errorEvent(in.Type, fmt.Errorf("%w: unknown intent %q", domain.ErrInvalidInput, in.Type)))
	}
}

type presencePayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

func (s *session) handleJoin(ctx context.Context, in *Inbound) {
	user, err := s.accounts.ResolveToken(ctx, in.Token)
	if err != nil {
		s.send(errorEvent(IntentJoin, err))
		return
	}

	first, err := s.registry.Bind(s.conn, user.ID)
	if err != nil {
		s.send(errorEvent(IntentJoin, err))
		return
	}
	s.user = user
	s.log = s.log.With(zap.String("user_id", user.ID))
	s.send(event(EventBound, user))

	if first {
		s.broadcastPresence(ctx, user, true)
	}
}

// broadcastPresence tells a user's followers that they came online or
// went offline. The interested-party set comes from the social graph.
func (s *session) broadcastPresence(ctx context.Context, user *domain.User, online bool) {
	followers, err := s.social.Followers(ctx, user.ID)
	if err != nil {
		s.log.Warn("list followers for presence broadcast", zap.Error(err))
		return
	}
	s.registry.BroadcastMany(followers, event(EventPresenceChanged, presencePayload{
		UserID:   user.ID,
		Username: user.Username,
		Online:   online,
	}))
}

// disconnect unbinds the connection; idempotent, so a duplicate
// disconnect signal is harmless. When the last connection drops the user
// goes offline for their followers.
func (s *session) disconnect(ctx context.Context) {
	user := s.user
	s.user = nil

	_, last := s.registry.Unbind(s.conn)
	if user == nil {
		return
	}
	if last {
		if err := s.accounts.TouchLastSeen(ctx, user.ID, time.Now().UTC()); err != nil {
			s.log.Warn("update last seen", zap.Error(err))
		}
		s.broadcastPresence(ctx, user, false)
	}
}

func (s *session) handleLogout(ctx context.Context) {
	s.disconnect(ctx)
	s.send(event(EventLoggedOut, nil))
}

type followPayload struct {
	FollowerID string       `json:"follower_id"`
	FolloweeID string       `json:"followee_id"`
	Follower   *domain.User `json:"follower,omitempty"`
}

func (s *session) handleFollow(ctx context.Context, in *Inbound) {
	if err := s.social.Follow(ctx, s.user.ID, in.TargetID); err != nil {
		s.send(errorEvent(IntentFollow, err))
		return
	}
	s.registry.BroadcastMany([]string{s.user.ID, in.TargetID}, event(EventFollowed, followPayload{
		FollowerID: s.user.ID,
		FolloweeID: in.TargetID,
		Follower:   s.user,
	}))
}

func (s *session) handleUnfollow(ctx context.Context, in *Inbound) {
	if err := s.social.Unfollow(ctx, s.user.ID, in.TargetID); err != nil {
		s.send(errorEvent(IntentUnfollow, err))
		return
	}
	s.registry.BroadcastMany([]string{s.user.ID, in.TargetID}, event(EventUnfollowed, followPayload{
		FollowerID: s.user.ID,
		FolloweeID: in.TargetID,
	}))
}

func (s *session) handleChats(ctx context.Context) {
	summaries, err := s.chats.ListForUser(ctx, s.user.ID)
	if err != nil {
		s.send(errorEvent(IntentChats, err))
		return
	}
	s.send(event(EventChats, summaries))
}

func (s *session) handleSendMessage(ctx context.Context, in *Inbound) {
	convID := in.ConversationID
	if convID == "" && in.TargetID != "" {
		// Direct conversations are created lazily on first message.
		conv, created, err := s.chats.GetOrCreateDirect(ctx, s.user.ID, in.TargetID)
		if err != nil {
			s.send(errorEvent(IntentSendMessage, err))
			return
		}
		convID = conv.ID
		if created {
			s.broadcastToParticipants(ctx, convID, event(EventConversationCreated, conv))
		}
	}

	msg, err := s.messages.Append(ctx, s.user.ID, service.AppendInput{
		ConversationID: convID,
		Content:        in.Content,
		Attachments:    in.Attachments,
		ReplyToID:      in.ReplyTo,
		Type:           in.MessageType,
	})
	if err != nil {
		s.send(errorEvent(IntentSendMessage, err))
		return
	}
	metrics.MessagesSent.Inc()

	view, err := s.messages.View(ctx, msg)
	if err != nil {
		s.log.Warn("build message view", zap.Error(err))
		view = &service.MessageView{Message: *msg}
	}
	s.broadcastToParticipants(ctx, convID, event(EventMessage, view))
}

func (s *session) handleMessagePage(ctx context.Context, in *Inbound) {
	page, err := s.messages.Page(ctx, s.user.ID, in.ConversationID, in.Before, in.Limit)
	if err != nil {
		s.send(errorEvent(IntentMessagePage, err))
		return
	}
	s.send(event(EventMessagePage, page))
}

func (s *session) handleEditMessage(ctx context.Context, in *Inbound) {
	msg, err := s.messages.Edit(ctx, s.user.ID, in.MessageID, in.Content)
	if err != nil {
		s.send(errorEvent(IntentEditMessage, err))
		return
	}
	s.broadcastToParticipants(ctx, msg.ConversationID, event(EventMessageEdited, msg))
}

func (s *session) handleDeleteMessage(ctx context.Context, in *Inbound) {
	msg, err := s.messages.Delete(ctx, s.user.ID, in.MessageID)
	if err != nil {
		s.send(errorEvent(IntentDeleteMessage, err))
		return
	}
	s.broadcastToParticipants(ctx, msg.ConversationID, event(EventMessageDeleted, msg))
}

type readPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

func (s *session) handleMarkRead(ctx context.Context, in *Inbound) {
	if err := s.chats.MarkRead(ctx, in.ConversationID, s.user.ID); err != nil {
		s.send(errorEvent(IntentMarkRead, err))
		return
	}
	s.broadcastToParticipants(ctx, in.ConversationID, event(EventMessagesRead, readPayload{
		ConversationID: in.ConversationID,
		UserID:         s.user.ID,
	}))
}

func (s *session) handleCreateGroup(ctx context.Context, in *Inbound) {
	var name string
	if in.Name != nil {
		name = *in.Name
	}
	conv, err := s.chats.CreateGroup(ctx, s.user.ID, service.GroupCreateInput{
		Name:      name,
		Avatar:    in.Avatar,
		MemberIDs: in.MemberIDs,
	})
	if err != nil {
		s.send(errorEvent(IntentCreateGroup, err))
		return
	}
	s.broadcastToParticipants(ctx, conv.ID, event(EventConversationCreated, conv))
}

func (s *session) handleUpdateGroup(ctx context.Context, in *Inbound) {
	conv, err := s.chats.UpdateGroup(ctx, s.user.ID, in.ConversationID, service.GroupUpdateInput{
		Name:          in.Name,
		Avatar:        in.Avatar,
		AddMembers:    in.AddMembers,
		RemoveMembers: in.RemoveMembers,
	})
	if err != nil {
		s.send(errorEvent(IntentUpdateGroup, err))
		return
	}
	s.broadcastToParticipants(ctx, conv.ID, event(EventGroupUpdated, conv))
}

type typingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
}

func (s *session) handleTyping(ctx context.Context, in *Inbound) {
	ids, err := s.chats.ParticipantIDs(ctx, in.ConversationID)
	if err != nil {
		s.send(errorEvent(IntentTyping, err))
		return
	}
	member := false
	var others []string
	for _, id := range ids {
		if id == s.user.ID {
			member = true
			continue
		}
		others = append(others, id)
	}
	if !member {
		s.send(errorEvent(IntentTyping, domain.ErrForbidden))
		return
	}
	s.registry.BroadcastMany(others, event(EventTyping, typingPayload{
		ConversationID: in.ConversationID,
		UserID:         s.user.ID,
		Username:       s.user.Username,
	}))
}

func (s *session) broadcastToParticipants(ctx context.Context, conversationID string, out *Outbound) {
	ids, err := s.chats.ParticipantIDs(ctx, conversationID)
	if err != nil {
		s.log.Warn("list participants for broadcast",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	s.registry.BroadcastMany(ids, out)
}
