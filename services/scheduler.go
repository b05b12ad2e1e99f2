package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartCacheRebuildScheduler rebuilds every member's badge cache on a fixed interval.
// Runs never overlap; a slow rebuild pushes the next one back. Call Shutdown on the result.
func (s *BadgeService) StartCacheRebuildScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.RebuildAllCaches(ctx); err != nil {
				s.Log.Error("scheduled cache rebuild failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("badge-cache-rebuild"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule cache rebuild: %w", err)
	}

	sched.Start()
	s.Log.Info("cache rebuild scheduler started", "interval", interval.String())
	return sched, nil
}
