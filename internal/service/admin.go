package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/tavola/internal/auth"
	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"go.uber.org/zap"
)

// AdminRepository defines the account operations required by AdminService.
type AdminRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	List(ctx context.Context) ([]models.AdminUser, error)
	Create(ctx context.Context, u *models.AdminUser) (*models.AdminUser, error)
	UpdatePassword(ctx context.Context, username, hash string) error
	SetActive(ctx context.Context, username string, active bool) error
}

// SessionRevoker removes sessions in bulk.
type SessionRevoker interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AdminService manages admin accounts out of band of the HTTP API.
type AdminService struct {
	repo     AdminRepository
	sessions SessionRevoker
	log      *zap.Logger
}

// NewAdminService constructs an AdminService.
func NewAdminService(repo AdminRepository, sessions SessionRevoker, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{repo: repo, sessions: sessions, log: log}
}

// Create adds an active account. A taken username yields ErrConflict.
func (s *AdminService) Create(ctx context.Context, username, email, password string) (*models.AdminUser, error) {
	username = strings.TrimSpace(username)
	if err := common.RequireFields(
		common.Text("username", username),
		common.Field{Name: "password", Present: password != ""},
	); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Create(ctx, &models.AdminUser{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("create admin %q: %w", username, err)
	}
	s.log.Info("admin account created", zap.String("username", username))
	return u, nil
}

// EnsureAdmin creates the account unless one with username already exists.
// It reports whether an account was created.
func (s *AdminService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, fmt.Errorf("lookup admin %q: %w", username, err)
	}
	if _, err := s.Create(ctx, username, email, password); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns every account.
func (s *AdminService) List(ctx context.Context) ([]models.AdminUser, error) {
	return s.repo.List(ctx)
}

// SetPassword replaces the password of username and revokes its sessions.
func (s *AdminService) SetPassword(ctx context.Context, username, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, username, hash); err != nil {
		return fmt.Errorf("set password for %q: %w", username, err)
	}
	s.log.Info("admin password changed", zap.String("username", username))
	return s.revoke(ctx, username)
}

// SetActive activates or deactivates username. Deactivation revokes its sessions.
func (s *AdminService) SetActive(ctx context.Context, username string, active bool) error {
	if err := s.repo.SetActive(ctx, username, active); err != nil {
		return fmt.Errorf("set active for %q: %w", username, err)
	}
	s.log.Info("admin activation changed", zap.String("username", username), zap.Bool("active", active))
	if active {
		return nil
	}
	return s.revoke(ctx, username)
}

// PurgeSessions deletes sessions idle for longer than window.
func (s *AdminService) PurgeSessions(ctx context.Context, window time.Duration) (int64, error) {
	return s.sessions.PurgeExpired(ctx, time.Now().Add(-window))
}

func (s *AdminService) revoke(ctx context.Context, username string) error {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("revoke sessions of %q: %w", username, err)
	}
	n, err := s.sessions.DeleteByUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("revoke sessions of %q: %w", username, err)
	}
	if n > 0 {
		s.log.Info("sessions revoked", zap.String("username", username), zap.Int64("count", n))
	}
	return nil
}
