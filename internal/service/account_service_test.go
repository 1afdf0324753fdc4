package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/security"
	"github.com/Shiajyas/social-app-sub002/internal/service"
)

func newAccountService(users *MockUserRepo) *service.AccountService {
	tokens := security.NewTokenService("test-secret", time.Hour)
	hash := security.NewPasswordHasher(bcrypt.MinCost)
	return service.NewAccountService(users, tokens, hash)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		users.On("GetByUsername", ctx, "alice").Return(nil, nil)
		users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := svc.Register(ctx, service.RegisterInput{Username: "alice", Password: "hunter2"})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "hunter2", user.HashedPassword)
	})

	t.Run("DuplicateUsernameConflicts", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		users.On("GetByUsername", ctx, "alice").Return(&domain.User{ID: "u1", Username: "alice"}, nil)

		_, err := svc.Register(ctx, service.RegisterInput{Username: "alice", Password: "hunter2"})
		assert.ErrorIs(t, err, domain.ErrConflict)
		users.AssertNotCalled(t, "Create")
	})

	t.Run("MissingFieldsRejected", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		_, err := svc.Register(ctx, service.RegisterInput{Username: "alice"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLoginAndResolveToken(t *testing.T) {
	ctx := context.Background()
	hash := security.NewPasswordHasher(bcrypt.MinCost)
	hashed, _ := hash.Hash("hunter2")
	alice := &domain.User{ID: "u1", Username: "alice", HashedPassword: hashed, IsActive: true}

	t.Run("TokenRoundTrip", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		users.On("GetByUsername", ctx, "alice").Return(alice, nil)
		users.On("GetByID", ctx, "u1").Return(alice, nil)

		resp, err := svc.Login(ctx, service.LoginInput{Username: "alice", Password: "hunter2"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)

		resolved, err := svc.ResolveToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", resolved.ID)
	})

	t.Run("WrongPasswordUnauthorized", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		users.On("GetByUsername", ctx, "alice").Return(alice, nil)

		_, err := svc.Login(ctx, service.LoginInput{Username: "alice", Password: "wrong"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownUserUnauthorized", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		users.On("GetByUsername", ctx, "ghost").Return(nil, nil)

		_, err := svc.Login(ctx, service.LoginInput{Username: "ghost", Password: "hunter2"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("InactiveUserUnauthorized", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		users.On("GetByUsername", ctx, "alice").Return(&domain.User{
			ID:             "u1",
			Username:       "alice",
			HashedPassword: hashed,
			IsActive:       false,
		}, nil)

		_, err := svc.Login(ctx, service.LoginInput{Username: "alice", Password: "hunter2"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("GarbageTokenUnauthorized", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAccountService(users)
		_, err := svc.ResolveToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
