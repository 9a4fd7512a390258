package scheduler

import (
	"context"
	"time"

	"pricewatch/internal/logger"
)

// IntervalScheduler runs a task on a fixed cadence anchored to the start time.
// A run that overruns the interval skips the missed slots instead of queueing
// them, so passes never overlap.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewIntervalScheduler(ctx context.Context, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Interval:       interval,
		RunImmediately: true,
		ctx:            ctx,
		nowFn:          time.Now,
		after:          time.After,
	}
}

// Start blocks until the scheduler context is cancelled.
func (s *IntervalScheduler) Start(task func(context.Context)) {
	if s == nil {
		return
	}
	prefix := "IntervalScheduler"
	if s.Name != "" {
		prefix = prefix + "[" + s.Name + "]"
	}
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}

	anchor := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s run_immediately=%v at=%s",
		prefix, s.Interval, s.RunImmediately, anchor.Format(time.RFC3339))

	if s.RunImmediately {
		if s.ctx.Err() != nil {
			return
		}
		task(s.ctx)
	}
	for {
		now := s.nowFn().UTC()
		nextAt := nextFixedTimeAfter(anchor, s.Interval, now)
		wait := nextAt.Sub(now)
		logger.Infof("%s: next run at=%s (in %s) | uptime=%s",
			prefix, nextAt.Format(time.RFC3339), wait.Truncate(time.Second), now.Sub(anchor).Truncate(time.Second))
		select {
		case <-s.ctx.Done():
			logger.Infof("%s: ctx done, exit", prefix)
			return
		case <-s.after(wait):
		}
		if s.ctx.Err() != nil {
			return
		}
		task(s.ctx)
	}
}

func nextFixedTimeAfter(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()
	if interval <= 0 {
		return now
	}
	delta := now.Sub(anchor)
	if delta < 0 {
		return anchor
	}
	k := delta / interval
	return anchor.Add((k + 1) * interval)
}
