package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/google/uuid"
)

// memUsers is an in-memory admin_users table.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.AdminUser
}

func newMemUsers(users ...*models.AdminUser) *memUsers {
	m := &memUsers{users: map[string]*models.AdminUser{}}
	for _, u := range users {
		m.users[u.Username] = u
	}
	return m
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) TouchLastLogin(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.LastLoginAt = &t
			return nil
		}
	}
	return common.ErrNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// memSessions is the session half of an in-memory settings table.
type memSessions struct {
	mu   sync.Mutex
	rows map[string]models.SessionRecord
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[string]models.SessionRecord{}}
}

func (m *memSessions) Put(_ context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.Token] = *rec
	return nil
}

func (m *memSessions) Get(_ context.Context, token string) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &rec, nil
}

func (m *memSessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, token)
	return nil
}

func (m *memSessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memContent holds every content table behind one lock.
type memContent struct {
	mu         sync.Mutex
	categories map[string]models.Category
	dishes     map[string]models.Dish
	videos     map[string]models.Video
	menu       map[string]models.MenuItem
	settings   map[string]models.Setting
	now        func() time.Time
}

func newMemContent() *memContent {
	return &memContent{
		categories: map[string]models.Category{},
		dishes:     map[string]models.Dish{},
		videos:     map[string]models.Video{},
		menu:       map[string]models.MenuItem{},
		settings:   map[string]models.Setting{},
		now:        time.Now,
	}
}

type memCategories struct{ *memContent }
type memDishes struct{ *memContent }
type memVideos struct{ *memContent }
type memMenu struct{ *memContent }
type memSettings struct{ *memContent }

func (m memCategories) List(context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m memCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = uuid.NewString()
	if cp.Slug == "" {
		cp.Slug = models.Slugify(cp.Name)
	}
	for _, existing := range m.categories {
		if existing.Slug == cp.Slug {
			return nil, common.ErrConflict
		}
	}
	cp.CreatedAt, cp.UpdatedAt = m.now(), m.now()
	m.categories[cp.ID] = cp
	return &cp, nil
}

func (m memCategories) Update(_ context.Context, c *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.categories[c.ID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	if cp.Slug == "" {
		cp.Slug = models.Slugify(cp.Name)
	}
	cp.CreatedAt, cp.UpdatedAt = old.CreatedAt, m.now()
	m.categories[cp.ID] = cp
	return &cp, nil
}

func (m memCategories) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return common.ErrNotFound
	}
	for _, d := range m.dishes {
		if d.CategoryID == id {
			return common.ErrConflict
		}
	}
	delete(m.categories, id)
	return nil
}

func (m memDishes) List(_ context.Context, categoryID string) ([]models.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Dish{}
	for _, d := range m.dishes {
		if categoryID == "" || d.CategoryID == categoryID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m memDishes) Get(_ context.Context, id string) (*models.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dishes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &d, nil
}

func (m memDishes) Create(_ context.Context, d *models.Dish) (*models.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[d.CategoryID]; !ok {
		return nil, &common.RequestError{Reason: "referenced row does not exist"}
	}
	cp := *d
	cp.ID = uuid.NewString()
	cp.CreatedAt, cp.UpdatedAt = m.now(), m.now()
	m.dishes[cp.ID] = cp
	return &cp, nil
}

func (m memDishes) Update(_ context.Context, d *models.Dish) (*models.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.dishes[d.ID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *d
	cp.CreatedAt, cp.UpdatedAt = old.CreatedAt, m.now()
	m.dishes[cp.ID] = cp
	return &cp, nil
}

func (m memDishes) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dishes[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.dishes, id)
	return nil
}

func (m memVideos) List(context.Context) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Video{}
	for _, v := range m.videos {
		out = append(out, v)
	}
	return out, nil
}

func (m memVideos) Create(_ context.Context, v *models.Video) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	cp.ID = uuid.NewString()
	m.videos[cp.ID] = cp
	return &cp, nil
}

func (m memVideos) Update(_ context.Context, v *models.Video) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[v.ID]; !ok {
		return nil, common.ErrNotFound
	}
	m.videos[v.ID] = *v
	return v, nil
}

func (m memVideos) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.videos, id)
	return nil
}

func (m memMenu) List(_ context.Context, onlyAvailable bool) ([]models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MenuItem{}
	for _, it := range m.menu {
		if !onlyAvailable || it.Available {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m memMenu) Create(_ context.Context, it *models.MenuItem) (*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	cp.ID = uuid.NewString()
	m.menu[cp.ID] = cp
	return &cp, nil
}

func (m memMenu) Update(_ context.Context, it *models.MenuItem) (*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[it.ID]; !ok {
		return nil, common.ErrNotFound
	}
	m.menu[it.ID] = *it
	return it, nil
}

func (m memMenu) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.menu, id)
	return nil
}

func (m memMenu) Reorder(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.menu[id]; !ok {
			return common.ErrNotFound
		}
	}
	for i, id := range ids {
		it := m.menu[id]
		it.SortOrder = i + 1
		m.menu[id] = it
	}
	return nil
}

func (m memSettings) List(context.Context) ([]models.Setting, error) {
	return m.filter(func(string) bool { return true }), nil
}

func (m memSettings) ListPublic(context.Context) ([]models.Setting, error) {
	return m.filter(func(k string) bool { return strings.HasPrefix(k, "site_") }), nil
}

func (m memSettings) filter(keep func(string) bool) []models.Setting {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Setting{}
	for k, s := range m.settings {
		if keep(k) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (m memSettings) Get(_ context.Context, key string) (*models.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}

func (m memSettings) Set(_ context.Context, key, value string) (*models.Setting, error) {
	if strings.HasPrefix(key, "session_") {
		return nil, common.ErrReservedKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.Setting{Key: key, Value: value, UpdatedAt: m.now()}
	m.settings[key] = s
	return &s, nil
}

func (m memSettings) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[key]; !ok {
		return common.ErrNotFound
	}
	delete(m.settings, key)
	return nil
}
