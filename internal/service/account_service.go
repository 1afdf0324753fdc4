package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/security"
)

// AccountService is the narrow account surface the chat core consumes:
// register/login to obtain an identity token, and user lookups for
// denormalizing display fields.
type AccountService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher
}

func NewAccountService(users domain.UserRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		hash:   hash,
	}
}

type RegisterInput struct {
	Username string
	Password string
	Avatar   *string
}

type LoginInput struct {
	Username string
	Password string
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, domain.ErrConflict
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:       in.Username,
		Avatar:         in.Avatar,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrUnauthorized
	}
	if err := s.hash.Verify(in.Password, user.HashedPassword); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

// GetUser resolves an identity to its display fields.
func (s *AccountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// TouchLastSeen records when the user's final connection dropped.
func (s *AccountService) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return s.users.SetLastSeen(ctx, id, at)
}

// ResolveToken validates a bearer token and returns the active user it
// identifies. Used by both the HTTP middleware and the join intent on a
// fresh connection.
func (s *AccountService) ResolveToken(ctx context.Context, tokenStr string) (*domain.User, error) {
	claims, err := s.tokens.Parse(tokenStr)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}
