package service

import (
	"context"
	"time"

	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"go.uber.org/zap"
)

// CounterResetter clears the daily usage counters
type CounterResetter interface {
	ResetDailyCounters(ctx context.Context) error
}

// DailyResetJob resets the today_* counters at local midnight
type DailyResetJob struct {
	store CounterResetter
	now   func() time.Time
	// after is swapped in tests
	after func(time.Duration) <-chan time.Time
}

func NewDailyResetJob(store CounterResetter) *DailyResetJob {
	return &DailyResetJob{store: store, now: time.Now, after: time.After}
}

// NextMidnight returns the first local midnight strictly after t
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// Run blocks until ctx is done, resetting once per day
func (j *DailyResetJob) Run(ctx context.Context) error {
	for {
		now := j.now()
		wait := NextMidnight(now).Sub(now)
		logger.Debug("daily counter reset scheduled", zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-j.after(wait):
		}

		if err := j.store.ResetDailyCounters(ctx); err != nil {
			logger.Error("daily counter reset failed", zap.Error(err))
			continue
		}
		logger.Info("daily counters reset")
	}
}
