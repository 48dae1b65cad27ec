package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/atinyakov/tavola/internal/models"
	"github.com/google/uuid"
)

// AdminUserRepository reads and writes the admin_users table.
type AdminUserRepository struct {
	DB DBTX
}

// NewAdminUserRepository creates an AdminUserRepository over db.
func NewAdminUserRepository(db DBTX) *AdminUserRepository {
	return &AdminUserRepository{DB: db}
}

const adminUserColumns = `id, username, email, password_hash, active, last_login_at, created_at`

func scanAdminUser(row interface{ Scan(...any) error }) (*models.AdminUser, error) {
	var (
		u         models.AdminUser
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &lastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// GetByUsername returns the account with the exact username, or ErrNotFound.
func (r *AdminUserRepository) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	u, err := scanAdminUser(r.DB.QueryRowContext(ctx,
		`SELECT `+adminUserColumns+` FROM admin_users WHERE username = $1`, username))
	if err != nil {
		return nil, wrapErr("get admin user", err)
	}
	return u, nil
}

// GetByID returns the account with id, or ErrNotFound.
func (r *AdminUserRepository) GetByID(ctx context.Context, id string) (*models.AdminUser, error) {
	u, err := scanAdminUser(r.DB.QueryRowContext(ctx,
		`SELECT `+adminUserColumns+` FROM admin_users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get admin user", err)
	}
	return u, nil
}

// List returns all accounts ordered by username.
func (r *AdminUserRepository) List(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users ORDER BY username`)
	if err != nil {
		return nil, wrapErr("list admin users", err)
	}
	defer rows.Close()

	var users []models.AdminUser
	for rows.Next() {
		u, err := scanAdminUser(rows)
		if err != nil {
			return nil, wrapErr("scan admin user", err)
		}
		users = append(users, *u)
	}
	return users, wrapErr("list admin users", rows.Err())
}

// Create inserts u, assigning a new ID. A taken username yields ErrConflict.
func (r *AdminUserRepository) Create(ctx context.Context, u *models.AdminUser) (*models.AdminUser, error) {
	created := *u
	created.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO admin_users (id, username, email, password_hash, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, created.ID, created.Username, created.Email, created.PasswordHash, created.Active).Scan(&created.CreatedAt)
	if err != nil {
		return nil, wrapErr("create admin user", err)
	}
	return &created, nil
}

// UpdatePassword replaces the password hash of username.
func (r *AdminUserRepository) UpdatePassword(ctx context.Context, username, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE admin_users SET password_hash = $1 WHERE username = $2`, hash, username)
	if err != nil {
		return wrapErr("update password", err)
	}
	return requireAffected("update password", res)
}

// SetActive flips the active flag of username.
func (r *AdminUserRepository) SetActive(ctx context.Context, username string, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE admin_users SET active = $1 WHERE username = $2`, active, username)
	if err != nil {
		return wrapErr("set active", err)
	}
	return requireAffected("set active", res)
}

// TouchLastLogin records a successful login at t.
func (r *AdminUserRepository) TouchLastLogin(ctx context.Context, id string, t time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE admin_users SET last_login_at = $1 WHERE id = $2`, t, id)
	return wrapErr("touch last login", err)
}
