// Package middleware provides the http middleware stack
package middleware

import (
	"net/http"

	"altscope/internal/platform/logger"
	pnet "altscope/internal/platform/net"

	"github.com/google/uuid"
)

// RequestID assigns a uuid to every request, honoring an inbound X-Request-ID
// and mirroring the id back in the response header
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := pnet.WithRequest(r.Context(), id)
		ctx = logger.WithRequest(ctx, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
