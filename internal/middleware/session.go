// Package middleware provides the HTTP middlewares of the server: the admin
// session gate, CORS, login rate limiting, request logging and metrics.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/tavola/internal/models"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie carrying the admin session token.
const SessionCookieName = "tavola_admin_session"

type ctxKey string

const sessionKey ctxKey = "session"

// SessionValidator resolves a token to a live session. A nil record with a
// nil error means the token is not valid.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.SessionRecord, error)
}

// TokenFromRequest returns the session cookie value, or "" when absent.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// RequireSession admits only requests carrying a valid session cookie. The
// session is stored in the request context for SessionFromContext.
func RequireSession(v SessionValidator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			rec, err := v.Validate(r.Context(), token)
			if err != nil {
				log.Error("session validation failed", zap.String("path", r.URL.Path), zap.Error(err))
				writeMessage(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if rec == nil {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			annotateUser(r.Context(), rec.Username)
			ctx := context.WithValue(r.Context(), sessionKey, rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session attached by RequireSession, or nil.
func SessionFromContext(ctx context.Context) *models.SessionRecord {
	rec, _ := ctx.Value(sessionKey).(*models.SessionRecord)
	return rec
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
