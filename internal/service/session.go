// Package service holds the admin authentication logic: the session
// lifecycle used by the HTTP gate and the account management used by the
// operator CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/tavola/internal/auth"
	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/metrics"
	"github.com/atinyakov/tavola/internal/models"
	"go.uber.org/zap"
)

// UserStore is the credential store consulted by the session manager.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	GetByID(ctx context.Context, id string) (*models.AdminUser, error)
	TouchLastLogin(ctx context.Context, id string, t time.Time) error
	UpdatePassword(ctx context.Context, username, hash string) error
}

// SessionStore persists session records keyed by token.
type SessionStore interface {
	Put(ctx context.Context, rec *models.SessionRecord) error
	Get(ctx context.Context, token string) (*models.SessionRecord, error)
	Delete(ctx context.Context, token string) error
}

// Recorder receives login and validation outcomes. *metrics.Metrics implements it.
type Recorder interface {
	LoginAttempt(outcome string)
	SessionValidation(result string)
}

type nopRecorder struct{}

func (nopRecorder) LoginAttempt(string)      {}
func (nopRecorder) SessionValidation(string) {}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token   string
	Session *models.SessionRecord
	User    models.UserSummary
}

// SessionManager implements login, validation with a sliding inactivity
// window, and logout.
type SessionManager struct {
	users    UserStore
	sessions SessionStore
	window   time.Duration
	log      *zap.Logger
	recorder Recorder

	now      func() time.Time
	newToken func() (string, error)
}

// SessionOption customises a SessionManager.
type SessionOption func(*SessionManager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// WithTokenSource replaces auth.NewToken.
func WithTokenSource(f func() (string, error)) SessionOption {
	return func(m *SessionManager) { m.newToken = f }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) SessionOption {
	return func(m *SessionManager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// NewSessionManager creates a SessionManager. window is the inactivity
// timeout after which a session stops validating.
func NewSessionManager(users UserStore, sessions SessionStore, window time.Duration, log *zap.Logger, opts ...SessionOption) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &SessionManager{
		users:    users,
		sessions: sessions,
		window:   window,
		log:      log,
		recorder: nopRecorder{},
		now:      time.Now,
		newToken: auth.NewToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Window returns the inactivity timeout.
func (m *SessionManager) Window() time.Duration {
	return m.window
}

// Login checks the credentials and opens a new session. An unknown user, an
// inactive account and a wrong password all return ErrInvalidCredentials.
func (m *SessionManager) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := common.RequireFields(
		common.Text("username", username),
		common.Field{Name: "password", Present: password != ""},
	); err != nil {
		return nil, err
	}

	user, err := m.users.GetByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		m.log.Info("login rejected: unknown user", zap.String("username", username))
		m.recorder.LoginAttempt(metrics.LoginUnknownUser)
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		m.log.Error("login: user lookup failed", zap.Error(err))
		m.recorder.LoginAttempt(metrics.LoginError)
		return nil, storeErr("login", err)
	}

	if !userExistsAndActive(user) {
		m.log.Info("login rejected: account inactive", zap.String("username", username))
		m.recorder.LoginAttempt(metrics.LoginInactive)
		return nil, common.ErrInvalidCredentials
	}
	if !passwordMatches(user, password) {
		m.log.Info("login rejected: wrong password", zap.String("username", username))
		m.recorder.LoginAttempt(metrics.LoginBadPassword)
		return nil, common.ErrInvalidCredentials
	}

	token, err := m.newToken()
	if err != nil {
		m.log.Error("login: token generation failed", zap.Error(err))
		m.recorder.LoginAttempt(metrics.LoginError)
		return nil, err
	}

	now := m.now().UTC()
	rec := &models.SessionRecord{
		Token:          token,
		UserID:         user.ID,
		Username:       user.Username,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.window),
	}
	if err := m.sessions.Put(ctx, rec); err != nil {
		m.log.Error("login: session write failed", zap.Error(err))
		m.recorder.LoginAttempt(metrics.LoginError)
		return nil, storeErr("login", err)
	}

	if err := m.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		m.log.Warn("login: last login update failed", zap.String("username", username), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	m.upgradeHash(ctx, user, password)

	m.log.Info("admin logged in", zap.String("username", user.Username))
	m.recorder.LoginAttempt(metrics.LoginSuccess)
	return &LoginResult{Token: token, Session: rec, User: user.Summary()}, nil
}

// upgradeHash replaces a legacy digest with bcrypt once the plain password is known.
func (m *SessionManager) upgradeHash(ctx context.Context, user *models.AdminUser, password string) {
	if !auth.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = m.users.UpdatePassword(ctx, user.Username, hash)
	}
	if err != nil {
		m.log.Warn("login: password rehash failed", zap.String("username", user.Username), zap.Error(err))
	}
}

// Validate returns the session for token and slides its expiry forward. It
// returns nil, nil when the token is empty, unknown, corrupt, idle for longer
// than the window, or bound to a missing or inactive account. A non-nil
// error means the store could not be consulted.
func (m *SessionManager) Validate(ctx context.Context, token string) (*models.SessionRecord, error) {
	if token == "" {
		m.recorder.SessionValidation(metrics.SessionMissing)
		return nil, nil
	}

	rec, err := m.sessions.Get(ctx, token)
	switch {
	case errors.Is(err, common.ErrNotFound):
		m.recorder.SessionValidation(metrics.SessionMissing)
		return nil, nil
	case errors.Is(err, common.ErrCorruptRecord):
		m.log.Warn("discarding corrupt session record", zap.Error(err))
		m.discard(ctx, token)
		m.recorder.SessionValidation(metrics.SessionCorrupt)
		return nil, nil
	case err != nil:
		m.log.Error("session lookup failed", zap.Error(err))
		m.recorder.SessionValidation(metrics.SessionError)
		return nil, storeErr("validate session", err)
	}

	now := m.now().UTC()
	if now.Sub(rec.LastActivityAt) > m.window {
		m.log.Debug("session expired", zap.String("username", rec.Username))
		m.discard(ctx, token)
		m.recorder.SessionValidation(metrics.SessionExpired)
		return nil, nil
	}

	user, err := m.users.GetByID(ctx, rec.UserID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		m.log.Error("session user lookup failed", zap.Error(err))
		m.recorder.SessionValidation(metrics.SessionError)
		return nil, storeErr("validate session", err)
	}
	if err != nil || !userExistsAndActive(user) {
		m.log.Info("session revoked: account missing or inactive", zap.String("username", rec.Username))
		m.discard(ctx, token)
		m.recorder.SessionValidation(metrics.SessionRevoked)
		return nil, nil
	}

	// Read-then-write: two concurrent requests may both refresh, the later wins.
	rec.LastActivityAt = now
	rec.ExpiresAt = now.Add(m.window)
	if err := m.sessions.Put(ctx, rec); err != nil {
		m.log.Error("session refresh failed", zap.Error(err))
		m.recorder.SessionValidation(metrics.SessionError)
		return nil, storeErr("validate session", err)
	}

	m.recorder.SessionValidation(metrics.SessionValid)
	return rec, nil
}

// Logout deletes the session for token. Unknown tokens are not an error.
func (m *SessionManager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, token); err != nil {
		return storeErr("logout", err)
	}
	return nil
}

func (m *SessionManager) discard(ctx context.Context, token string) {
	if err := m.sessions.Delete(ctx, token); err != nil {
		m.log.Warn("failed to delete stale session", zap.Error(err))
	}
}

func userExistsAndActive(user *models.AdminUser) bool {
	return user != nil && user.Active
}

func passwordMatches(user *models.AdminUser, password string) bool {
	return auth.CheckPassword(user.PasswordHash, password)
}

// storeErr makes sure err matches ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, common.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
}
