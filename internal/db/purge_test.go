package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	removed int64
	err     error
}

func (f *fakePurger) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.removed, f.err
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func bufferLogger(level zapcore.Level) (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		level,
	)
	return zap.New(core), &buf
}

func TestPurgeOnce_Cutoff(t *testing.T) {
	p := &fakePurger{removed: 3}
	logger, buf := bufferLogger(zapcore.InfoLevel)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	purgeOnce(context.Background(), p, now, 30*time.Minute, logger)

	if p.calls() != 1 {
		t.Fatalf("PurgeExpired calls = %d; want 1", p.calls())
	}
	if want := now.Add(-30 * time.Minute); !p.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v; want %v", p.cutoffs[0], want)
	}
	if !strings.Contains(buf.String(), "purged expired sessions") {
		t.Errorf("expected info log, got:\n%s", buf.String())
	}
}

func TestPurgeOnce_ErrorLogged(t *testing.T) {
	p := &fakePurger{err: errors.New("db fail")}
	logger, buf := bufferLogger(zapcore.ErrorLevel)

	purgeOnce(context.Background(), p, time.Now(), time.Minute, logger)

	if !strings.Contains(buf.String(), "failed to purge expired sessions") {
		t.Errorf("expected error log, got:\n%s", buf.String())
	}
}

func TestPurgeOnce_CancelledContext(t *testing.T) {
	p := &fakePurger{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	purgeOnce(ctx, p, time.Now(), time.Minute, zap.NewNop())

	if p.calls() != 0 {
		t.Errorf("PurgeExpired called %d times after cancel", p.calls())
	}
}

func TestStartSessionPurge_BadSchedule(t *testing.T) {
	_, err := StartSessionPurge(context.Background(), &fakePurger{}, "not a schedule", time.Minute, zap.NewNop())
	if err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStartSessionPurge_Runs(t *testing.T) {
	p := &fakePurger{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := StartSessionPurge(ctx, p, "@every 1s", time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("StartSessionPurge returned error: %v", err)
	}
	defer stop()

	deadline := time.Now().Add(5 * time.Second)
	for p.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if p.calls() == 0 {
		t.Fatal("purge job never ran")
	}
}
