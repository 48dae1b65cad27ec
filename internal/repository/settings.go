package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
)

// PublicSettingPrefix marks settings exposed on the public site endpoint.
const PublicSettingPrefix = "site_"

// SettingsRepository manages application settings. Session rows share the
// table but are never visible or writable through it.
type SettingsRepository struct {
	DB DBTX
}

// NewSettingsRepository creates a SettingsRepository over db.
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{DB: db}
}

func checkKey(key string) error {
	if strings.HasPrefix(key, SessionKeyPrefix) {
		return fmt.Errorf("%w: %q", common.ErrReservedKey, key)
	}
	return nil
}

// List returns every non-session setting ordered by key.
func (r *SettingsRepository) List(ctx context.Context) ([]models.Setting, error) {
	return r.list(ctx, `
		SELECT key, value, updated_at FROM settings
		 WHERE key NOT LIKE $1
		 ORDER BY key
	`, sessionKeyPattern)
}

// ListPublic returns the settings whose keys start with PublicSettingPrefix.
func (r *SettingsRepository) ListPublic(ctx context.Context) ([]models.Setting, error) {
	return r.list(ctx, `
		SELECT key, value, updated_at FROM settings
		 WHERE key LIKE $1
		 ORDER BY key
	`, `site\_%`)
}

func (r *SettingsRepository) list(ctx context.Context, query string, args ...any) ([]models.Setting, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list settings", err)
	}
	defer rows.Close()

	settings := []models.Setting{}
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, wrapErr("scan setting", err)
		}
		settings = append(settings, s)
	}
	return settings, wrapErr("list settings", rows.Err())
}

// Get returns the setting stored under key, or ErrNotFound.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var s models.Setting
	err := r.DB.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get setting", err)
	}
	return &s, nil
}

// Set upserts key and returns the stored row.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s := models.Setting{Key: key, Value: value}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING updated_at
	`, key, value).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, wrapErr("set setting", err)
	}
	return &s, nil
}

// Delete removes key, returning ErrNotFound when it did not exist.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return wrapErr("delete setting", err)
	}
	return requireAffected("delete setting", res)
}
