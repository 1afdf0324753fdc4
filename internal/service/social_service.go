package service

import (
	"context"
	"fmt"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
)

// SocialService persists follow relationships and exposes the follower
// sets the connection layer fans presence events out to.
type SocialService struct {
	follows domain.FollowRepository
	users   domain.UserRepository
}

func NewSocialService(follows domain.FollowRepository, users domain.UserRepository) *SocialService {
	return &SocialService{follows: follows, users: users}
}

// Follow records follower -> followee. Idempotent; following an unknown
// user is ErrNotFound.
func (s *SocialService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == "" || followeeID == "" || followerID == followeeID {
		return fmt.Errorf("%w: cannot follow yourself", domain.ErrInvalidInput)
	}
	followee, err := s.users.GetByID(ctx, followeeID)
	if err != nil {
		return fmt.Errorf("get followee: %w", err)
	}
	if followee == nil {
		return domain.ErrNotFound
	}
	if err := s.follows.Create(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("create follow: %w", err)
	}
	return nil
}

// Unfollow removes the relationship; removing a non-existent one is a
// no-op.
func (s *SocialService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if followerID == "" || followeeID == "" {
		return domain.ErrInvalidInput
	}
	if err := s.follows.Delete(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (s *SocialService) Followers(ctx context.Context, userID string) ([]string, error) {
	return s.follows.ListFollowers(ctx, userID)
}

func (s *SocialService) Following(ctx context.Context, userID string) ([]string, error) {
	return s.follows.ListFollowing(ctx, userID)
}
