package mw

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the request context by d. The handler owns the response:
// when the deadline fires it sees ctx.Err() and writes its own status.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
