package user

import (
	"context"
	"errors"
	"log"
	"strings"

	"pokedex/internal/notify"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Register(ctx context.Context, email, displayName, hashedPassword string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return User{}, ErrAlreadyExists
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	newUser := &User{
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		Password:    hashedPassword,
		Role:        RoleUser,
	}
	if err := s.repo.Create(ctx, newUser); err != nil {
		return User{}, err
	}
	return *newUser, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) (User, error) {
	name = strings.TrimSpace(name)
	u, err := s.repo.SetDisplayName(ctx, userID, &name)
	if err != nil {
		log.Printf("display name update failed user=%s error=%v", userID, err)
		notify.Failure(ctx, "Could not update username")
		return User{}, err
	}
	notify.Success(ctx, "Username updated successfully")
	return u, nil
}

func (s *Service) ClearDisplayName(ctx context.Context, userID string) (User, error) {
	u, err := s.repo.SetDisplayName(ctx, userID, nil)
	if err != nil {
		log.Printf("display name delete failed user=%s error=%v", userID, err)
		notify.Failure(ctx, "Could not delete username")
		return User{}, err
	}
	notify.Success(ctx, "Username deleted successfully")
	return u, nil
}
