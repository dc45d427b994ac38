package httpx

import (
	"net/http"

	"pokedex/internal/notify"
)

// NotifyMiddleware attaches a notification collector to every request.
func NotifyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := notify.WithCollector(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
