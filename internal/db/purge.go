package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionPurger deletes session rows whose last activity is older than cutoff.
type SessionPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartSessionPurge schedules a cron job that removes sessions idle for longer
// than window. Validation rejects such sessions on its own, the job only keeps
// the settings table from accumulating dead rows. The returned stop function
// waits for a running purge to finish.
func StartSessionPurge(
	ctx context.Context,
	purger SessionPurger,
	schedule string,
	window time.Duration,
	log *zap.Logger,
) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		purgeOnce(ctx, purger, time.Now(), window, log)
	})
	if err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", schedule, err)
	}
	c.Start()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		<-c.Stop().Done()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-c.Stop().Done()
		})
	}, nil
}

func purgeOnce(ctx context.Context, purger SessionPurger, now time.Time, window time.Duration, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	removed, err := purger.PurgeExpired(ctx, now.Add(-window))
	if err != nil {
		log.Error("failed to purge expired sessions", zap.Error(err))
		return
	}
	if removed > 0 {
		log.Info("purged expired sessions", zap.Int64("removed", removed))
	}
}
