package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"pokedex/internal/notify"
	"pokedex/internal/platform/crypto"
	"pokedex/internal/session"
	"pokedex/internal/user"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	accessTokenTTL     = 15 * time.Minute
	refreshTokenTTL    = 30 * 24 * time.Hour
	rememberRefreshTTL = 90 * 24 * time.Hour
)

type Tokens struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type Service struct {
	secret         string
	userService    *user.Service
	sessionService *session.Service
	events         broker
	now            func() time.Time
}

func NewService(secret string, userService *user.Service, sessionService *session.Service) *Service {
	return &Service{
		secret:         secret,
		userService:    userService,
		sessionService: sessionService,
		now:            time.Now,
	}
}

// Subscribe registers fn for identity changes and returns a func that removes it.
func (s *Service) Subscribe(fn func(IdentityEvent)) func() {
	return s.events.subscribe(fn)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// issue creates an access token and a fresh refresh-token session for u.
func (s *Service) issue(ctx context.Context, u user.User, rememberMe bool, userAgent, ipAddress string) (Tokens, error) {
	accessToken, _, err := crypto.GenerateToken(s.secret, u.ID, u.Role, accessTokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	refreshToken, err := newRefreshToken()
	if err != nil {
		return Tokens{}, err
	}

	ttl := refreshTokenTTL
	if rememberMe {
		ttl = rememberRefreshTTL
	}
	sess := &session.Session{
		UserID:           u.ID,
		RefreshTokenHash: hashToken(refreshToken),
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		RememberMe:       rememberMe,
		ExpiresAt:        s.now().Add(ttl),
	}
	if err := s.sessionService.Create(ctx, sess); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		UserID:       u.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool, userAgent, ipAddress string) (Tokens, error) {
	u, err := s.userService.GetByEmail(ctx, email)
	if err != nil || !crypto.VerifyPassword(u.Password, password) {
		notify.Failure(ctx, "Sign-in failed: invalid email or password")
		return Tokens{}, ErrUnauthorized
	}

	tokens, err := s.issue(ctx, u, rememberMe, userAgent, ipAddress)
	if err != nil {
		log.Printf("sign-in failed user=%s error=%v", u.ID, err)
		notify.Failure(ctx, "Sign-in failed")
		return Tokens{}, err
	}

	s.events.publish(IdentityEvent{Kind: SignedIn, UserID: u.ID, At: s.now()})
	return tokens, nil
}

// RefreshToken rotates a refresh token. The identity is unchanged, so no
// event is published.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (Tokens, error) {
	tokenHash := hashToken(refreshToken)
	sess, err := s.sessionService.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return Tokens{}, ErrUnauthorized
	}

	u, err := s.userService.GetByID(ctx, sess.UserID)
	if err != nil {
		return Tokens{}, ErrUnauthorized
	}

	if err := s.sessionService.DeleteByTokenHash(ctx, tokenHash); err != nil {
		return Tokens{}, err
	}
	return s.issue(ctx, u, sess.RememberMe, sess.UserAgent, sess.IPAddress)
}

// Logout revokes the access token and, when given, its refresh token.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := crypto.ParseToken(s.secret, accessToken)
	if err != nil {
		return ErrUnauthorized
	}

	expiresAt := s.now().Add(accessTokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.sessionService.AddToBlacklist(ctx, claims.ID, claims.Sub, expiresAt); err != nil {
		log.Printf("sign-out failed user=%s error=%v", claims.Sub, err)
		notify.Failure(ctx, "Sign-out failed")
		return err
	}
	if refreshToken != "" {
		if err := s.sessionService.DeleteByTokenHash(ctx, hashToken(refreshToken)); err != nil {
			log.Printf("refresh session delete failed user=%s error=%v", claims.Sub, err)
		}
	}

	s.events.publish(IdentityEvent{Kind: SignedOut, UserID: claims.Sub, At: s.now()})
	return nil
}
