package service

import (
	"context"
	"testing"
	"time"

	"github.com/atinyakov/tavola/internal/auth"
	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdminService_CreateAndEnsure(t *testing.T) {
	users := newFakeUsers()
	svc := NewAdminService(users, newFakeSessions(), zap.NewNop())
	ctx := context.Background()

	u, err := svc.Create(ctx, " admin ", "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.True(t, u.Active)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "pw"))

	_, err = svc.Create(ctx, "admin", "", "pw")
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = svc.Create(ctx, "", "", "")
	assert.ErrorIs(t, err, common.ErrBadRequest)

	created, err := svc.EnsureAdmin(ctx, "admin", "", "other")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.EnsureAdmin(ctx, "chef", "", "pw2")
	require.NoError(t, err)
	assert.True(t, created)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAdminService_EnsureAdminLookupError(t *testing.T) {
	users := newFakeUsers()
	users.getErr = errDB
	svc := NewAdminService(users, newFakeSessions(), nil)

	_, err := svc.EnsureAdmin(context.Background(), "admin", "", "pw")
	assert.ErrorIs(t, err, errDB)
}

func TestAdminService_SetPasswordRevokesSessions(t *testing.T) {
	users := newFakeUsers(&models.AdminUser{ID: "u-1", Username: "admin", PasswordHash: "x", Active: true})
	sessions := newFakeSessions()
	sessions.rows["t1"] = models.SessionRecord{Token: "t1", UserID: "u-1"}
	sessions.rows["t2"] = models.SessionRecord{Token: "t2", UserID: "u-2"}
	svc := NewAdminService(users, sessions, zap.NewNop())

	require.NoError(t, svc.SetPassword(context.Background(), "admin", "new-pass"))

	u, _ := users.GetByUsername(context.Background(), "admin")
	assert.True(t, auth.CheckPassword(u.PasswordHash, "new-pass"))
	assert.False(t, sessions.has("t1"))
	assert.True(t, sessions.has("t2"))

	assert.ErrorIs(t, svc.SetPassword(context.Background(), "ghost", "pw"), common.ErrNotFound)
}

func TestAdminService_SetActive(t *testing.T) {
	users := newFakeUsers(&models.AdminUser{ID: "u-1", Username: "admin", Active: true})
	sessions := newFakeSessions()
	sessions.rows["t1"] = models.SessionRecord{Token: "t1", UserID: "u-1"}
	svc := NewAdminService(users, sessions, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.SetActive(ctx, "admin", false))
	u, _ := users.GetByUsername(ctx, "admin")
	assert.False(t, u.Active)
	assert.False(t, sessions.has("t1"))

	require.NoError(t, svc.SetActive(ctx, "admin", true))
	u, _ = users.GetByUsername(ctx, "admin")
	assert.True(t, u.Active)
}

func TestAdminService_PurgeSessions(t *testing.T) {
	sessions := newFakeSessions()
	sessions.rows["old"] = models.SessionRecord{Token: "old", LastActivityAt: time.Now().Add(-2 * time.Hour)}
	sessions.rows["new"] = models.SessionRecord{Token: "new", LastActivityAt: time.Now()}
	svc := NewAdminService(newFakeUsers(), sessions, nil)

	n, err := svc.PurgeSessions(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, sessions.has("new"))
}
