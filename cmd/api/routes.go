package main

import (
	"context"
	"net/http"
	"time"

	"pokedex/internal/auth"
	"pokedex/internal/httpx"
	"pokedex/internal/pokedex"
	"pokedex/internal/pokemon"
	"pokedex/internal/session"
	"pokedex/internal/user"
)

const maxRequestBytes = 1 << 20

type handlers struct {
	auth     *auth.HTTPHandler
	users    *user.HTTPHandler
	sessions *session.HTTPHandler
	pokedex  *pokedex.HTTPHandler
	loads    *pokemon.HTTPHandler
}

// newRouter registers every route. ready backs /readyz.
func newRouter(h handlers, jwtSecret string, blacklist httpx.BlacklistRepository, ready func(context.Context) error) *http.ServeMux {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	protected := httpx.AuthMiddleware(jwtSecret, blacklist)
	optional := httpx.OptionalAuthMiddleware(jwtSecret, blacklist)

	router.HandleFunc("POST /v1/users/register", h.users.RegisterUser)
	router.HandleFunc("POST /v1/auth/login", h.auth.Login)
	router.HandleFunc("POST /v1/auth/refresh", h.auth.RefreshToken)
	router.Handle("POST /v1/auth/logout", protected(http.HandlerFunc(h.auth.Logout)))

	router.Handle("GET /v1/me", protected(http.HandlerFunc(h.users.GetCurrentUser)))
	router.Handle("PATCH /v1/me/display-name", protected(http.HandlerFunc(h.users.UpdateDisplayName)))
	router.Handle("DELETE /v1/me/display-name", protected(http.HandlerFunc(h.users.DeleteDisplayName)))
	router.Handle("GET /v1/me/sessions", protected(http.HandlerFunc(h.sessions.ListSessions)))
	router.Handle("DELETE /v1/me/sessions/{id}", protected(http.HandlerFunc(h.sessions.DeleteSession)))

	router.Handle("GET /v1/pokemon", optional(http.HandlerFunc(h.pokedex.ListPokemon)))
	router.Handle("GET /v1/pokemon/{name}", optional(http.HandlerFunc(h.pokedex.GetPokemon)))
	router.Handle("POST /v1/pokemon/reload", protected(http.HandlerFunc(h.pokedex.Reload)))
	router.Handle("GET /v1/pokemon/loads", protected(http.HandlerFunc(h.loads.ListLoads)))

	router.Handle("GET /v1/collection", protected(http.HandlerFunc(h.pokedex.ListCollection)))
	router.Handle("POST /v1/collection", protected(http.HandlerFunc(h.pokedex.AddToCollection)))
	router.Handle("DELETE /v1/collection/{name}", protected(http.HandlerFunc(h.pokedex.RemoveFromCollection)))
	router.Handle("GET /v1/collection/{name}/ownership", protected(http.HandlerFunc(h.pokedex.Ownership)))

	return router
}

// withMiddleware wraps the router in the global chain, outermost first.
func withMiddleware(router http.Handler, cfg Config, limiter *httpx.RateLimiter) http.Handler {
	return httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		httpx.RequestSizeLimitMiddleware(maxRequestBytes),
		limiter.Middleware,
		httpx.NotifyMiddleware,
	)
}
