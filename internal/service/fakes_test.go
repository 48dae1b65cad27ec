package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
)

type fakeUsers struct {
	mu       sync.Mutex
	byName   map[string]*models.AdminUser
	getErr   error
	touchErr error
	touched  map[string]time.Time
}

func newFakeUsers(users ...*models.AdminUser) *fakeUsers {
	f := &fakeUsers{byName: map[string]*models.AdminUser{}, touched: map[string]time.Time{}}
	for _, u := range users {
		f.byName[u.Username] = u
	}
	return f
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byName {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched[id] = t
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, username, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) List(context.Context) ([]models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AdminUser
	for _, u := range f.byName {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.AdminUser) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[u.Username]; ok {
		return nil, common.ErrConflict
	}
	cp := *u
	cp.ID = "id-" + u.Username
	f.byName[u.Username] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsers) SetActive(_ context.Context, username string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return common.ErrNotFound
	}
	u.Active = active
	return nil
}

type fakeSessions struct {
	mu      sync.Mutex
	rows    map[string]models.SessionRecord
	corrupt map[string]bool
	getErr  error
	putErr  error
	delErr  error
	deleted []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]models.SessionRecord{}, corrupt: map[string]bool{}}
}

func (f *fakeSessions) Put(_ context.Context, rec *models.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.rows[rec.Token] = *rec
	return nil
}

func (f *fakeSessions) Get(_ context.Context, token string) (*models.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.corrupt[token] {
		return nil, common.ErrCorruptRecord
	}
	rec, ok := f.rows[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeSessions) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, token)
	delete(f.rows, token)
	delete(f.corrupt, token)
	return nil
}

func (f *fakeSessions) DeleteByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for tok, rec := range f.rows {
		if rec.UserID == userID {
			delete(f.rows, tok)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for tok, rec := range f.rows {
		if rec.LastActivityAt.Before(cutoff) {
			delete(f.rows, tok)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) has(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[token]
	return ok
}

type countingRecorder struct {
	mu          sync.Mutex
	logins      map[string]int
	validations map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{logins: map[string]int{}, validations: map[string]int{}}
}

func (r *countingRecorder) LoginAttempt(o string) {
	r.mu.Lock()
	r.logins[o]++
	r.mu.Unlock()
}

func (r *countingRecorder) SessionValidation(o string) {
	r.mu.Lock()
	r.validations[o]++
	r.mu.Unlock()
}

var errDB = errors.New("connection refused")
