package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"

	"github.com/saldanaj97/atlaris-sub007/internal/api/shared"
	"github.com/saldanaj97/atlaris-sub007/internal/ratelimit"
)

// RateLimitMiddleware applies an in-process sliding-window limit per
// caller. Authenticated requests are keyed by user ID so one user cannot
// exhaust the budget of others behind the same NAT; anonymous requests
// fall back to the client IP. This limiter is a cheap first line in front
// of the durable per-user limit enforced at reservation time, and it is
// only meaningful on a single instance.
type RateLimitMiddleware struct {
	window *ratelimit.Window
}

// NewRateLimitMiddleware creates a RateLimitMiddleware over the given
// window. Panics if window is nil.
func NewRateLimitMiddleware(window *ratelimit.Window) *RateLimitMiddleware {
	if window == nil {
		panic("window cannot be nil")
	}
	return &RateLimitMiddleware{window: window}
}

// Limit rejects requests over the window's budget with 429 and a
// Retry-After header.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := m.window.Allow(callerKey(r))
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			shared.RespondWithError(w, r, http.StatusTooManyRequests,
				"Too many requests, please retry later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if userID, ok := GetUserID(r); ok {
		return "user:" + userID.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
