// Package http provides the HTTP handlers and routing of the Tavola API:
// admin authentication, public site content and the admin content backend.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/middleware"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/atinyakov/tavola/internal/service"
	"go.uber.org/zap"
)

// SessionService defines the session lifecycle used by the auth handlers.
type SessionService interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// UserLookup resolves the account behind a session.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.AdminUser, error)
}

// AuthHandler serves login, logout, the current session and the client
// inactivity policy.
type AuthHandler struct {
	Sessions SessionService
	Users    UserLookup
	// Window is the inactivity timeout and the cookie Max-Age.
	Window time.Duration
	// Warning is how long before expiry clients should start warning.
	Warning time.Duration
	// SecureCookies forces the Secure attribute on plain HTTP.
	SecureCookies bool
	Log           *zap.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}

	res, err := h.Sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}

	http.SetCookie(w, h.sessionCookie(r, res.Token, int(h.Window/time.Second)))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    res.User,
	})
}

// Logout deletes the session, if any, and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if err := h.Sessions.Logout(r.Context(), token); err != nil {
			h.Log.Warn("logout: session delete failed", zap.Error(err))
		}
	}
	http.SetCookie(w, h.sessionCookie(r, "", -1))
	writeMessage(w, http.StatusOK, "Logged out")
}

// Session returns the user of the current session. It runs behind the gate.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFromContext(r.Context())
	if rec == nil {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	user, err := h.Users.GetByID(r.Context(), rec.UserID)
	if errors.Is(err, common.ErrNotFound) {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user.Summary(),
		"expiresAt": rec.ExpiresAt,
	})
}

// Policy tells clients how long sessions live without activity.
func (h *AuthHandler) Policy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"inactivityTimeoutSeconds": int(h.Window / time.Second),
		"warningSeconds":           int(h.Warning / time.Second),
		"cookieName":               middleware.SessionCookieName,
	})
}

func (h *AuthHandler) sessionCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.SecureCookies || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	}
}
