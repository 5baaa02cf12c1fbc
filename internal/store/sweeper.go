package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expiry sweep every ten minutes.
const DefaultSweepSchedule = "*/10 * * * *"

// sweepTimeout bounds a single sweep.
const sweepTimeout = time.Minute

// Sweeper periodically deletes expired checkpoints from SQL backends. Redis
// expires keys itself and the in-memory store never expires, so neither
// needs one.
type Sweeper struct {
	mu       sync.Mutex
	run      sync.Mutex
	target   Expirer
	schedule string
	cron     *cron.Cron
	cancel   context.CancelFunc
}

// NewSweeper creates a sweeper for target. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(target Expirer, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{target: target, schedule: schedule}
}

// SweeperFor returns a sweeper when s needs explicit expiry, or nil.
func SweeperFor(s Store, schedule string) *Sweeper {
	exp, ok := s.(Expirer)
	if !ok {
		return nil
	}
	return NewSweeper(exp, schedule)
}

// Start registers the sweep on a standard five-field cron schedule.
func (w *Sweeper) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	w.cron = cron.New(cron.WithParser(parser))
	if _, err := w.cron.AddFunc(w.schedule, func() { w.Sweep(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("sweeper: invalid schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	slog.Info("Sweeper.Start: expiry sweep scheduled", "schedule", w.schedule)
	return nil
}

// Sweep runs one pass. Overlapping ticks are skipped.
func (w *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if !w.run.TryLock() {
		slog.Warn("Sweeper.Sweep: previous sweep still running, skipping tick")
		return 0, nil
	}
	defer w.run.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := w.target.DeleteExpired(ctx)
	if err != nil {
		slog.Error("Sweeper.Sweep: sweep failed", "error", err)
		return 0, err
	}
	slog.Debug("Sweeper.Sweep: sweep completed", "removed", n)
	return n, nil
}

// Stop cancels in-flight work and waits for the running sweep to finish.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
		slog.Info("Sweeper.Stop: expiry sweep stopped")
	}
}
