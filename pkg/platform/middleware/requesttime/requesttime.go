// Package requesttime pins a single "now" per request so due-date checks,
// signed_at stamps and audit timestamps agree within one operation.
package requesttime

import (
	"net/http"
	"time"

	"lexflow/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
