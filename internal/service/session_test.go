package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atinyakov/tavola/internal/auth"
	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/metrics"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPassword = "Admin123!@#"
	testWindow   = 30 * time.Minute
)

var (
	hashOnce   sync.Once
	bcryptHash string
)

func testHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		bcryptHash = h
	})
	return bcryptHash
}

type harness struct {
	users    *fakeUsers
	sessions *fakeSessions
	recorder *countingRecorder
	clock    time.Time
	mgr      *SessionManager
}

func newHarness(t *testing.T, users ...*models.AdminUser) *harness {
	t.Helper()
	if len(users) == 0 {
		users = []*models.AdminUser{{ID: "u-1", Username: "admin", Email: "admin@example.com", PasswordHash: testHash(t), Active: true}}
	}
	h := &harness{
		users:    newFakeUsers(users...),
		sessions: newFakeSessions(),
		recorder: newCountingRecorder(),
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	n := 0
	h.mgr = NewSessionManager(h.users, h.sessions, testWindow, zap.NewNop(),
		WithClock(func() time.Time { return h.clock }),
		WithTokenSource(func() (string, error) {
			n++
			return strings.Repeat("ab", 31) + string(rune('0'+n)) + "0", nil
		}),
		WithRecorder(h.recorder),
	)
	return h
}

func TestLogin_MissingFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.mgr.Login(context.Background(), "", "")
	require.ErrorIs(t, err, common.ErrBadRequest)
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"username", "password"}, ve.Missing)

	_, err = h.mgr.Login(context.Background(), "admin", "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"password"}, ve.Missing)
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)

	res, err := h.mgr.Login(context.Background(), "admin", testPassword)
	require.NoError(t, err)

	assert.Len(t, res.Token, 64)
	assert.Equal(t, "admin", res.User.Username)
	assert.Equal(t, "admin@example.com", res.User.Email)
	require.NotNil(t, res.User.LastLoginAt)
	assert.Equal(t, h.clock, *res.User.LastLoginAt)

	assert.True(t, h.sessions.has(res.Token))
	assert.Equal(t, h.clock.Add(testWindow), res.Session.ExpiresAt)
	assert.Equal(t, "u-1", res.Session.UserID)
	assert.Equal(t, 1, h.recorder.logins[metrics.LoginSuccess])
}

func TestLogin_DistinctTokensPerLogin(t *testing.T) {
	h := newHarness(t)

	a, err := h.mgr.Login(context.Background(), "admin", testPassword)
	require.NoError(t, err)
	b, err := h.mgr.Login(context.Background(), "admin", testPassword)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	assert.True(t, h.sessions.has(a.Token))
	assert.True(t, h.sessions.has(b.Token))
}

func TestLogin_Rejections(t *testing.T) {
	inactive := &models.AdminUser{ID: "u-2", Username: "old", PasswordHash: testHash(t), Active: false}
	active := &models.AdminUser{ID: "u-1", Username: "admin", PasswordHash: testHash(t), Active: true}

	cases := []struct {
		name     string
		username string
		password string
		outcome  string
	}{
		{"unknown user", "ghost", testPassword, metrics.LoginUnknownUser},
		{"inactive account", "old", testPassword, metrics.LoginInactive},
		{"wrong password", "admin", "nope", metrics.LoginBadPassword},
		{"username case differs", "Admin", testPassword, metrics.LoginUnknownUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, active, inactive)
			res, err := h.mgr.Login(context.Background(), tc.username, tc.password)
			assert.Nil(t, res)
			assert.Same(t, common.ErrInvalidCredentials, err)
			assert.Equal(t, 1, h.recorder.logins[tc.outcome])
			assert.Empty(t, h.sessions.rows)
		})
	}
}

func TestLogin_StoreFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		h := newHarness(t)
		h.users.getErr = errDB
		_, err := h.mgr.Login(context.Background(), "admin", testPassword)
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
		assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
	})
	t.Run("session write", func(t *testing.T) {
		h := newHarness(t)
		h.sessions.putErr = errDB
		_, err := h.mgr.Login(context.Background(), "admin", testPassword)
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	})
	t.Run("last login update is best effort", func(t *testing.T) {
		h := newHarness(t)
		h.users.touchErr = errDB
		res, err := h.mgr.Login(context.Background(), "admin", testPassword)
		require.NoError(t, err)
		assert.Nil(t, res.User.LastLoginAt)
	})
	t.Run("token source", func(t *testing.T) {
		h := newHarness(t)
		h.mgr.newToken = func() (string, error) { return "", errors.New("no entropy") }
		_, err := h.mgr.Login(context.Background(), "admin", testPassword)
		assert.Error(t, err)
		assert.Empty(t, h.sessions.rows)
	})
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy-pass"))
	h := newHarness(t, &models.AdminUser{ID: "u-9", Username: "legacy", PasswordHash: hex.EncodeToString(sum[:]), Active: true})

	_, err := h.mgr.Login(context.Background(), "legacy", "legacy-pass")
	require.NoError(t, err)

	u, _ := h.users.GetByUsername(context.Background(), "legacy")
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
	assert.True(t, auth.CheckPassword(u.PasswordHash, "legacy-pass"))
}

func loginToken(t *testing.T, h *harness) string {
	t.Helper()
	res, err := h.mgr.Login(context.Background(), "admin", testPassword)
	require.NoError(t, err)
	return res.Token
}

func TestValidate_EmptyAndUnknown(t *testing.T) {
	h := newHarness(t)

	rec, err := h.mgr.Validate(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = h.mgr.Validate(context.Background(), "deadbeef")
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 2, h.recorder.validations[metrics.SessionMissing])
}

func TestValidate_SlidingWindow(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		valid   bool
	}{
		{"fresh", 0, true},
		{"one second before the window", testWindow - time.Second, true},
		{"exactly the window", testWindow, true},
		{"one second past the window", testWindow + time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			token := loginToken(t, h)
			start := h.clock

			h.clock = start.Add(tc.elapsed)
			rec, err := h.mgr.Validate(context.Background(), token)
			require.NoError(t, err)

			if !tc.valid {
				assert.Nil(t, rec)
				assert.False(t, h.sessions.has(token), "expired row is deleted")
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, "admin", rec.Username)
			assert.Equal(t, h.clock, rec.LastActivityAt)
			assert.Equal(t, h.clock.Add(testWindow), rec.ExpiresAt)
		})
	}
}

func TestValidate_ActivityExtendsSession(t *testing.T) {
	h := newHarness(t)
	token := loginToken(t, h)

	for i := 0; i < 4; i++ {
		h.clock = h.clock.Add(testWindow - time.Minute)
		rec, err := h.mgr.Validate(context.Background(), token)
		require.NoError(t, err)
		require.NotNil(t, rec, "validation %d", i)
	}

	h.clock = h.clock.Add(testWindow + time.Second)
	rec, err := h.mgr.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestValidate_CorruptRecord(t *testing.T) {
	h := newHarness(t)
	h.sessions.corrupt["bad"] = true

	rec, err := h.mgr.Validate(context.Background(), "bad")
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Contains(t, h.sessions.deleted, "bad")
	assert.Equal(t, 1, h.recorder.validations[metrics.SessionCorrupt])
}

func TestValidate_DeactivatedUser(t *testing.T) {
	h := newHarness(t)
	token := loginToken(t, h)

	require.NoError(t, h.users.SetActive(context.Background(), "admin", false))

	rec, err := h.mgr.Validate(context.Background(), token)
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, h.sessions.has(token))
	assert.Equal(t, 1, h.recorder.validations[metrics.SessionRevoked])
}

func TestValidate_StoreError(t *testing.T) {
	h := newHarness(t)
	token := loginToken(t, h)
	h.sessions.getErr = errDB

	rec, err := h.mgr.Validate(context.Background(), token)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	token := loginToken(t, h)

	require.NoError(t, h.mgr.Logout(context.Background(), token))
	assert.False(t, h.sessions.has(token))

	rec, err := h.mgr.Validate(context.Background(), token)
	assert.NoError(t, err)
	assert.Nil(t, rec)

	assert.NoError(t, h.mgr.Logout(context.Background(), token), "logout is idempotent")
	assert.NoError(t, h.mgr.Logout(context.Background(), ""))

	h.sessions.delErr = errDB
	assert.ErrorIs(t, h.mgr.Logout(context.Background(), token), common.ErrStoreUnavailable)
}
