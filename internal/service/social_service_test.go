package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/service"
)

func newSocialService() (*service.SocialService, *MockFollowRepo, *MockUserRepo) {
	follows := new(MockFollowRepo)
	users := new(MockUserRepo)
	return service.NewSocialService(follows, users), follows, users
}

func TestFollow(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, follows, users := newSocialService()
		users.On("GetByID", ctx, "bob").Return(&domain.User{ID: "bob"}, nil)
		follows.On("Create", ctx, "alice", "bob").Return(nil)

		require.NoError(t, svc.Follow(ctx, "alice", "bob"))
		follows.AssertExpectations(t)
	})

	t.Run("SelfFollowRejected", func(t *testing.T) {
		svc, follows, _ := newSocialService()
		err := svc.Follow(ctx, "alice", "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		follows.AssertNotCalled(t, "Create")
	})

	t.Run("UnknownFolloweeIsNotFound", func(t *testing.T) {
		svc, follows, users := newSocialService()
		users.On("GetByID", ctx, "ghost").Return(nil, nil)

		err := svc.Follow(ctx, "alice", "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		follows.AssertNotCalled(t, "Create")
	})
}

func TestUnfollow(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, follows, _ := newSocialService()
		follows.On("Delete", ctx, "alice", "bob").Return(nil)
		require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))
	})

	t.Run("EmptyIDRejected", func(t *testing.T) {
		svc, _, _ := newSocialService()
		err := svc.Unfollow(ctx, "", "bob")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
