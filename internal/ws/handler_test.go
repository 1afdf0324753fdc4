package ws

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/security"
	"github.com/Shiajyas/social-app-sub002/internal/service"
	"github.com/Shiajyas/social-app-sub002/internal/store/sqlite"
)

// sessionEnv wires sessions over a real store so dispatch tests exercise
// the same path a live connection takes.
type sessionEnv struct {
	registry *Registry
	accounts *service.AccountService
	chats    *service.ChatService
	messages *service.MessageService
	social   *service.SocialService
	tokens   *security.TokenService
	users    domain.UserRepository
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	users := sqlite.NewUserRepo(db)
	chats := sqlite.NewChatRepo(db)
	messages := sqlite.NewMessageRepo(db)
	follows := sqlite.NewFollowRepo(db)

	tokens := security.NewTokenService("test-secret", time.Hour)
	hash := security.NewPasswordHasher(0)

	return &sessionEnv{
		registry: NewRegistry(zap.NewNop()),
		accounts: service.NewAccountService(users, tokens, hash),
		chats:    service.NewChatService(chats, messages),
		messages: service.NewMessageService(chats, messages, users),
		social:   service.NewSocialService(follows, users),
		tokens:   tokens,
		users:    users,
	}
}

// addUser registers a user directly in the store and returns a valid
// token for them.
func (e *sessionEnv) addUser(t *testing.T, id, username string) string {
	t.Helper()
	require.NoError(t, e.users.Create(context.Background(), &domain.User{
		ID:             id,
		Username:       username,
		HashedPassword: "x",
		IsActive:       true,
	}))
	token, err := e.tokens.CreateForUser(id)
	require.NoError(t, err)
	return token
}

func (e *sessionEnv) newSession(conn Sender) *session {
	return &session{
		conn:     conn,
		registry: e.registry,
		accounts: e.accounts,
		chats:    e.chats,
		messages: e.messages,
		social:   e.social,
		log:      zap.NewNop(),
	}
}

// lastOutbound returns the most recent envelope the fake connection got.
func lastOutbound(t *testing.T, f *fakeSender) *Outbound {
	t.Helper()
	got := f.received()
	require.NotEmpty(t, got)
	out, ok := got[len(got)-1].(*Outbound)
	require.True(t, ok)
	return out
}

func outboundsOfType(f *fakeSender, eventType string) []*Outbound {
	var res []*Outbound
	for _, v := range f.received() {
		if out, ok := v.(*Outbound); ok && out.Type == eventType {
			res = append(res, out)
		}
	}
	return res
}

func TestDispatchRequiresJoin(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	// Every intent except join must bounce off an unauthenticated session.
	for _, intent := range []Intent{
		IntentLogout, IntentFollow, IntentUnfollow, IntentOnlineSet,
		IntentChats, IntentSendMessage, IntentMessagePage,
		IntentEditMessage, IntentDeleteMessage, IntentMarkRead,
		IntentCreateGroup, IntentUpdateGroup, IntentTyping,
	} {
		t.Run(string(intent), func(t *testing.T) {
			conn := newFakeSender("c-" + string(intent))
			s := env.newSession(conn)
			s.dispatch(ctx, &Inbound{Type: intent})

			out := lastOutbound(t, conn)
			assert.Equal(t, EventError, out.Type)
			assert.Equal(t, intent, out.Req)
			assert.Equal(t, "unauthorized", out.Code)
		})
	}
}

func TestDispatchJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidTokenBindsAndAcks", func(t *testing.T) {
		env := newSessionEnv(t)
		token := env.addUser(t, "alice", "alice")
		conn := newFakeSender("c1")
		s := env.newSession(conn)

		s.dispatch(ctx, &Inbound{Type: IntentJoin, Token: token})

		out := lastOutbound(t, conn)
		assert.Equal(t, EventBound, out.Type)
		assert.True(t, env.registry.IsOnline("alice"))
		require.NotNil(t, s.user)
		assert.Equal(t, "alice", s.user.ID)
	})

	t.Run("GarbageTokenStaysUnbound", func(t *testing.T) {
		env := newSessionEnv(t)
		conn := newFakeSender("c1")
		s := env.newSession(conn)

		s.dispatch(ctx, &Inbound{Type: IntentJoin, Token: "garbage"})

		out := lastOutbound(t, conn)
		assert.Equal(t, EventError, out.Type)
		assert.Equal(t, "unauthorized", out.Code)
		assert.Nil(t, s.user)
	})

	t.Run("UnknownIntentIsInvalidInput", func(t *testing.T) {
		env := newSessionEnv(t)
		token := env.addUser(t, "alice", "alice")
		conn := newFakeSender("c1")
		s := env.newSession(conn)
		s.dispatch(ctx, &Inbound{Type: IntentJoin, Token: token})

		s.dispatch(ctx, &Inbound{Type: "teleport"})
		out := lastOutbound(t, conn)
		assert.Equal(t, EventError, out.Type)
		assert.Equal(t, "invalid_input", out.Code)
	})
}

func TestDispatchLogout(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	token := env.addUser(t, "alice", "alice")
	conn := newFakeSender("c1")
	s := env.newSession(conn)
	s.dispatch(ctx, &Inbound{Type: IntentJoin, Token: token})
	require.True(t, env.registry.IsOnline("alice"))

	s.dispatch(ctx, &Inbound{Type: IntentLogout})

	out := lastOutbound(t, conn)
	assert.Equal(t, EventLoggedOut, out.Type)
	assert.False(t, env.registry.IsOnline("alice"))
	assert.Nil(t, s.user)
}

func TestDispatchSendMessage(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	aliceToken := env.addUser(t, "alice", "alice")
	bobToken := env.addUser(t, "bob", "bob")

	aliceConn := newFakeSender("alice-conn")
	alice := env.newSession(aliceConn)
	alice.dispatch(ctx, &Inbound{Type: IntentJoin, Token: aliceToken})

	bobConn := newFakeSender("bob-conn")
	bob := env.newSession(bobConn)
	bob.dispatch(ctx, &Inbound{Type: IntentJoin, Token: bobToken})

	// First direct message creates the conversation lazily; both sides see
	// the conversation and the message.
	alice.dispatch(ctx, &Inbound{
		Type:     IntentSendMessage,
		TargetID: "bob",
		Content:  "hi bob",
	})

	created := outboundsOfType(bobConn, EventConversationCreated)
	require.Len(t, created, 1)
	conv := created[0].Payload.(*domain.Conversation)

	delivered := outboundsOfType(bobConn, EventMessage)
	require.Len(t, delivered, 1)
	view := delivered[0].Payload.(*service.MessageView)
	assert.Equal(t, "hi bob", view.Content)
	assert.Equal(t, "alice", view.SenderID)
	require.Len(t, outboundsOfType(aliceConn, EventMessage), 1)

	// A second message reuses the conversation.
	bob.dispatch(ctx, &Inbound{
		Type:           IntentSendMessage,
		ConversationID: conv.ID,
		Content:        "hi alice",
	})
	assert.Len(t, outboundsOfType(bobConn, EventConversationCreated), 1)
	assert.Len(t, outboundsOfType(aliceConn, EventMessage), 2)

	// History page comes back newest first.
	alice.dispatch(ctx, &Inbound{
		Type:           IntentMessagePage,
		ConversationID: conv.ID,
		Limit:          10,
	})
	pages := outboundsOfType(aliceConn, EventMessagePage)
	require.Len(t, pages, 1)
	page := pages[0].Payload.(*service.MessagePage)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "hi alice", page.Messages[0].Content)
	assert.Equal(t, "hi bob", page.Messages[1].Content)
}

func TestDispatchUpdateGroup(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	aliceToken := env.addUser(t, "alice", "alice")
	env.addUser(t, "bob", "bob")

	conn := newFakeSender("alice-conn")
	s := env.newSession(conn)
	s.dispatch(ctx, &Inbound{Type: IntentJoin, Token: aliceToken})

	name := "pair"
	s.dispatch(ctx, &Inbound{Type: IntentCreateGroup, Name: &name, MemberIDs: []string{"bob"}})
	created := outboundsOfType(conn, EventConversationCreated)
	require.Len(t, created, 1)
	conv := created[0].Payload.(*domain.Conversation)

	// Shrinking below two members is rejected and must leave the stored
	// membership untouched.
	s.dispatch(ctx, &Inbound{Type: IntentUpdateGroup, ConversationID: conv.ID, RemoveMembers: []string{"bob"}})
	out := lastOutbound(t, conn)
	assert.Equal(t, EventError, out.Type)
	assert.Equal(t, "invalid_membership", out.Code)

	ids, err := env.chats.ParticipantIDs(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestDispatchPresenceFanout(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	aliceToken := env.addUser(t, "alice", "alice")
	bobToken := env.addUser(t, "bob", "bob")

	// Bob follows alice, so alice's presence changes reach him.
	require.NoError(t, env.social.Follow(ctx, "bob", "alice"))

	bobConn := newFakeSender("bob-conn")
	bob := env.newSession(bobConn)
	bob.dispatch(ctx, &Inbound{Type: IntentJoin, Token: bobToken})

	aliceConn := newFakeSender("alice-conn")
	alice := env.newSession(aliceConn)
	alice.dispatch(ctx, &Inbound{Type: IntentJoin, Token: aliceToken})

	online := outboundsOfType(bobConn, EventPresenceChanged)
	require.Len(t, online, 1)
	payload := online[0].Payload.(presencePayload)
	assert.Equal(t, "alice", payload.UserID)
	assert.True(t, payload.Online)

	// Second connection for alice must not re-announce.
	alice2 := env.newSession(newFakeSender("alice-conn-2"))
	alice2.dispatch(ctx, &Inbound{Type: IntentJoin, Token: aliceToken})
	assert.Len(t, outboundsOfType(bobConn, EventPresenceChanged), 1)

	// Offline is announced only when the last connection goes.
	alice2.disconnect(ctx)
	assert.Len(t, outboundsOfType(bobConn, EventPresenceChanged), 1)
	alice.disconnect(ctx)
	events := outboundsOfType(bobConn, EventPresenceChanged)
	require.Len(t, events, 2)
	assert.False(t, events[1].Payload.(presencePayload).Online)
}

func TestDispatchOnlineSet(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	token := env.addUser(t, "alice", "alice")
	env.addUser(t, "bob", "bob")

	conn := newFakeSender("c1")
	s := env.newSession(conn)
	s.dispatch(ctx, &Inbound{Type: IntentJoin, Token: token})

	s.dispatch(ctx, &Inbound{Type: IntentOnlineSet, UserIDs: []string{"alice", "bob"}})
	sets := outboundsOfType(conn, EventOnlineSet)
	require.Len(t, sets, 1)
	set := sets[0].Payload.(map[string]bool)
	assert.True(t, set["alice"])
	assert.False(t, set["bob"])
}
