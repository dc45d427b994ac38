package httpx

import (
	"context"
	"log"
	"net/http"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	written bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// accessEntry is filled in by inner handlers; auth runs below the access log
// and records the user here.
type accessEntry struct {
	userID string
}

type accessEntryKey struct{}

func recordUser(ctx context.Context, userID string) {
	if e, ok := ctx.Value(accessEntryKey{}).(*accessEntry); ok {
		e.userID = userID
	}
}

func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		entry := &accessEntry{}
		r = r.WithContext(context.WithValue(r.Context(), accessEntryKey{}, entry))

		next.ServeHTTP(rw, r)

		log.Printf("access method=%s path=%s status=%d bytes=%d duration_ms=%d request_id=%s user_id=%s",
			r.Method,
			r.URL.Path,
			rw.status,
			rw.bytes,
			time.Since(start).Milliseconds(),
			RequestIDFrom(r),
			entry.userID,
		)
	})
}
