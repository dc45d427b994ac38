package httpx

import (
	"context"
	"net/http"
	"strings"

	"pokedex/internal/platform/crypto"
)

type BlacklistRepository interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// authenticate returns r with the token's user attached, or false when the
// token is invalid, expired or revoked.
func authenticate(r *http.Request, token, secret string, blacklistRepo BlacklistRepository) (*http.Request, bool) {
	claims, err := crypto.ParseToken(secret, token)
	if err != nil {
		return nil, false
	}

	if blacklistRepo != nil {
		isBlacklisted, err := blacklistRepo.IsBlacklisted(r.Context(), claims.ID)
		if err != nil || isBlacklisted {
			return nil, false
		}
	}

	recordUser(r.Context(), claims.Sub)
	ctx := ContextWithUser(r.Context(), claims.Sub, claims.Role)
	ctx = ContextWithTokenID(ctx, claims.ID)
	return r.WithContext(ctx), true
}

func AuthMiddleware(secret string, blacklistRepo BlacklistRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			authed, ok := authenticate(r, token, secret, blacklistRepo)
			if !ok {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}

// OptionalAuthMiddleware lets anonymous requests through. A token that is
// present but invalid is still rejected.
func OptionalAuthMiddleware(secret string, blacklistRepo BlacklistRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			authed, ok := authenticate(r, token, secret, blacklistRepo)
			if !ok {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}
