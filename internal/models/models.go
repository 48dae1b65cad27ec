// Package models defines the core data structures for admin accounts,
// sessions, settings and site content.
package models

import (
	"strings"
	"time"
	"unicode"
)

// AdminUser represents one operator account.
type AdminUser struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the login name, unique and case-sensitive as stored.
	Username string
	// Email is the contact address shown in the admin UI.
	Email string
	// PasswordHash is the bcrypt hash (or legacy SHA-256 hex digest) of the password.
	PasswordHash string
	// Active is false for deactivated accounts.
	Active bool
	// LastLoginAt is nil until the first successful login.
	LastLoginAt *time.Time
	// CreatedAt is the account creation time.
	CreatedAt time.Time
}

// UserSummary is the redacted view of an AdminUser returned to clients.
type UserSummary struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Summary returns the user without its password hash.
func (u *AdminUser) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
	}
}

// SessionRecord is one authenticated browser session. It is stored as a JSON
// blob; the token is the storage key and never part of the blob.
type SessionRecord struct {
	Token          string    `json:"-"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Setting is one application configuration entry.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category groups gallery dishes.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Dish is one gallery entry.
type Dish struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	CategoryID  string    `json:"categoryId"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Video is a locally hosted video.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MenuItem is one priced line of the menu.
type MenuItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Section     string    `json:"section"`
	Available   bool      `json:"available"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// YouTubeVideo is one upload returned by the YouTube read-through.
type YouTubeVideo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// Slugify lowercases s and joins its letters and digits with single dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
