package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
)

// SessionKeyPrefix namespaces session rows inside the settings table.
const SessionKeyPrefix = "session_"

// sessionKeyPattern matches SessionKeyPrefix in a LIKE clause.
const sessionKeyPattern = `session\_%`

// SessionRepository stores SessionRecords as JSON blobs in the settings
// table under SessionKeyPrefix+token.
type SessionRepository struct {
	DB DBTX
}

// NewSessionRepository creates a SessionRepository over db.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{DB: db}
}

func sessionKey(token string) string {
	return SessionKeyPrefix + token
}

// Put writes rec, replacing any row stored under the same token.
func (r *SessionRepository) Put(ctx context.Context, rec *models.SessionRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, sessionKey(rec.Token), string(blob), rec.LastActivityAt)
	return wrapErr("put session", err)
}

// Get returns the record for token. A missing row yields ErrNotFound and an
// undecodable blob yields ErrCorruptRecord.
func (r *SessionRepository) Get(ctx context.Context, token string) (*models.SessionRecord, error) {
	var blob string
	err := r.DB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = $1`, sessionKey(token)).Scan(&blob)
	if err != nil {
		return nil, wrapErr("get session", err)
	}

	var rec models.SessionRecord
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return nil, fmt.Errorf("get session: %w: %v", common.ErrCorruptRecord, err)
	}
	if rec.UserID == "" || rec.LastActivityAt.IsZero() {
		return nil, fmt.Errorf("get session: %w: incomplete record", common.ErrCorruptRecord)
	}
	rec.Token = token
	return &rec, nil
}

// Delete removes the row for token. Deleting a missing row is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, sessionKey(token))
	return wrapErr("delete session", err)
}

// DeleteByUser revokes every session of userID and returns how many were removed.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM settings
		 WHERE key LIKE $1
		   AND strpos(value, '"userId":"' || $2 || '"') > 0
	`, sessionKeyPattern, userID)
	if err != nil {
		return 0, wrapErr("delete user sessions", err)
	}
	n, err := res.RowsAffected()
	return n, wrapErr("delete user sessions", err)
}

// PurgeExpired deletes sessions whose last activity is before cutoff.
func (r *SessionRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM settings
		 WHERE key LIKE $1
		   AND updated_at < $2
	`, sessionKeyPattern, cutoff)
	if err != nil {
		return 0, wrapErr("purge sessions", err)
	}
	n, err := res.RowsAffected()
	return n, wrapErr("purge sessions", err)
}
