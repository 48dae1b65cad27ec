// Package ratelimit implements the in-memory login attempt limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows a fixed number of attempts per key in each window. The
// window starts at the first attempt of a key. When the number of tracked
// keys reaches maxKeys the key with the oldest window is evicted.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	window  time.Duration
	maxKeys int
	now     func() time.Time
}

type window struct {
	count   int
	startAt time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMaxKeys bounds the number of tracked keys. Values below 1 mean unbounded.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) { l.maxKeys = n }
}

// New creates a Limiter allowing limit attempts per key per windowSize.
func New(limit int, windowSize time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  windowSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.startAt.Add(l.window)) {
		if !ok {
			l.makeRoom(now)
		}
		l.windows[key] = &window{count: 1, startAt: now}
		return true
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// RetryAfter returns how long key has to wait for its window to roll over.
// It is zero when key is not currently limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.count < l.limit {
		return 0
	}
	if d := w.startAt.Add(l.window).Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// makeRoom drops expired windows and, if the map is still full, the oldest one.
func (l *Limiter) makeRoom(now time.Time) {
	if l.maxKeys < 1 || len(l.windows) < l.maxKeys {
		return
	}
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, w := range l.windows {
		if !now.Before(w.startAt.Add(l.window)) {
			delete(l.windows, k)
			continue
		}
		if oldestKey == "" || w.startAt.Before(oldest) {
			oldestKey, oldest = k, w.startAt
		}
	}
	if len(l.windows) >= l.maxKeys && oldestKey != "" {
		delete(l.windows, oldestKey)
	}
}
