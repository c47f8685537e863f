// internal/buddies/scheduler.go

package buddies

import (
	"context"
	"time"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

// Scheduler runs the periodic buddy jobs.
type Scheduler struct {
	manager     *Manager
	stats       *StatsCollector
	expireEvery time.Duration
	statsEvery  time.Duration
	log         *logger.Logger
}

func NewScheduler(manager *Manager, stats *StatsCollector, expireEvery, statsEvery time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		manager:     manager,
		stats:       stats,
		expireEvery: expireEvery,
		statsEvery:  statsEvery,
		log:         log.With("component", "buddy_scheduler"),
	}
}

// Start launches the jobs. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	// Cancel requests whose event has started
	go s.runEvery(ctx, "expire_pending", s.expireEvery, func(ctx context.Context) error {
		_, err := s.manager.ExpireStarted(ctx)
		return err
	})

	// Refresh gauges
	go s.runEvery(ctx, "collect_stats", s.statsEvery, func(ctx context.Context) error {
		_, err := s.stats.Collect(ctx)
		return err
	})
}

// runEvery runs task once immediately and then on every tick.
func (s *Scheduler) runEvery(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	if interval <= 0 {
		return
	}

	run := func() {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Scheduled task failed", "task", name, "error", err)
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
