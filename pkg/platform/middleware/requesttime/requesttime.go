// Package requesttime pins a single "now" for the whole request, so cooldowns,
// expiry checks and audit timestamps within one request agree.
package requesttime

import (
	"net/http"
	"time"

	"vericore/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
