package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vantage/internal/domain"
	"vantage/internal/repo"
)

const (
	DefaultTickInterval  = time.Minute
	DefaultMaxConcurrent = 10
)

// CheckRunner runs one check cycle for one monitor.
type CheckRunner interface {
	Execute(ctx context.Context, monitor *domain.Monitor) error
}

// Scheduler drives the recurring due-check loop. Each tick it loads the
// active monitors, picks the due ones up to the free concurrency slots and
// runs their checks in parallel, guaranteeing at most one in-flight check
// per monitor via the active set.
type Scheduler struct {
	Logger        *zap.Logger
	Monitors      repo.MonitorStore
	Runner        CheckRunner
	Interval      time.Duration
	MaxConcurrent int

	active *activeSet
	wg     sync.WaitGroup
	now    func() time.Time
}

func New(logger *zap.Logger, monitors repo.MonitorStore, runner CheckRunner, interval time.Duration, maxConcurrent int) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Scheduler{
		Logger:        logger,
		Monitors:      monitors,
		Runner:        runner,
		Interval:      interval,
		MaxConcurrent: maxConcurrent,
		active:        newActiveSet(),
		now:           time.Now,
	}
}

// Run starts the loop: an immediate pass, then one per tick. Returns when
// ctx is cancelled, after in-flight checks have finished.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs a single tick without waiting for the checks it starts;
// a check slower than the tick keeps its slot and its active-set entry until
// it finishes. A storage failure aborts this tick only; a failing check is
// logged and never disturbs its siblings.
func (s *Scheduler) runOnce(ctx context.Context) {
	monitors, err := s.Monitors.ListActive(ctx)
	if err != nil {
		s.Logger.Warn("scheduler_list_error", zap.Error(err))
		return
	}

	now := s.now().UTC()
	slots := s.MaxConcurrent - s.active.Len()
	if slots <= 0 {
		s.Logger.Debug("scheduler_saturated", zap.Int("active", s.active.Len()))
		return
	}

	dispatched := 0
	for i := range monitors {
		if dispatched >= slots {
			break
		}
		m := monitors[i]
		if !s.IsDue(&m, now) {
			continue
		}
		if !s.active.Add(m.ID) {
			continue
		}
		dispatched++

		// Stamp before running so a slow or failing check cannot cause
		// an immediate re-dispatch next tick.
		if err := s.Monitors.SetLastChecked(ctx, m.ID, now); err != nil {
			s.Logger.Warn("scheduler_stamp_error",
				zap.String("monitor_id", string(m.ID)),
				zap.Error(err),
			)
		}

		s.wg.Add(1)
		go func(m domain.Monitor) {
			defer s.wg.Done()
			defer s.active.Remove(m.ID)
			defer func() {
				if r := recover(); r != nil {
					s.Logger.Error("check_panic",
						zap.String("monitor_id", string(m.ID)),
						zap.String("url", m.URL),
						zap.Any("panic", r),
					)
				}
			}()

			if err := s.Runner.Execute(ctx, &m); err != nil {
				s.Logger.Warn("check_failed",
					zap.String("monitor_id", string(m.ID)),
					zap.String("url", m.URL),
					zap.Error(err),
				)
			}
		}(m)
	}

	if dispatched > 0 {
		s.Logger.Debug("scheduler_dispatched", zap.Int("count", dispatched))
	}
}

// IsDue reports whether a monitor should be checked now. A monitor already
// being checked is never due. A lastCheckedAt in the future counts as due
// (clock-skew defense), and the interval boundary is inclusive.
func (s *Scheduler) IsDue(m *domain.Monitor, now time.Time) bool {
	if s.active.Contains(m.ID) {
		return false
	}
	if m.LastCheckedAt == nil {
		return true
	}
	if m.LastCheckedAt.After(now) {
		return true
	}
	return now.Sub(*m.LastCheckedAt) >= m.Interval()
}
