package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is one refresh-token login of a user.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"-"`
	RefreshTokenHash string    `json:"-"`
	UserAgent        string    `json:"user_agent"`
	IPAddress        string    `json:"ip_address"`
	RememberMe       bool      `json:"remember_me"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastUsedAt       time.Time `json:"last_used_at"`
}

type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	ListByUserID(ctx context.Context, userID string) ([]Session, error)
	DeleteForUser(ctx context.Context, sessionID, userID string) error
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// BlacklistRepository stores revoked access token ids until they expire.
type BlacklistRepository interface {
	AddToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}
