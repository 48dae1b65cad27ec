package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/tavola/internal/metrics"
)

// AttemptLimiter decides whether another attempt from key may proceed.
type AttemptLimiter interface {
	Allow(key string) bool
	RetryAfter(key string) time.Duration
}

// LoginRecorder counts rejected attempts.
type LoginRecorder interface {
	LoginAttempt(outcome string)
}

// RateLimit rejects requests with 429 once the client address has used up
// its attempts. trustProxy makes the address come from X-Forwarded-For or
// X-Real-IP.
func RateLimit(l AttemptLimiter, trustProxy bool, rec LoginRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r, trustProxy)
			if !l.Allow(key) {
				if rec != nil {
					rec.LoginAttempt(metrics.LoginRateLimited)
				}
				secs := int(math.Ceil(l.RetryAfter(key).Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeMessage(w, http.StatusTooManyRequests, "Too many login attempts, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the address the request came from.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
