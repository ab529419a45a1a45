// Package trigger implements the cron-based maintenance sweep that evicts
// expired store rows in the background.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper is the interface the scheduler drives on each tick.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// DefaultSweepCron runs the expiry sweep every 15 minutes. Expired rows are
// already invisible to reads; the sweep just reclaims space.
const DefaultSweepCron = "*/15 * * * *"

// Scheduler manages the background maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
}

// NewScheduler creates a scheduler backed by the given sweeper.
// Cron expressions use the standard 5-field format: minute hour day-of-month
// month day-of-week. Do not use WithSeconds() so docs and configs match.
func NewScheduler(sweeper Sweeper) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
	}
}

// RegisterSweep adds the expiry sweep at the given cron spec; blank uses the
// default cadence.
func (s *Scheduler) RegisterSweep(spec string) error {
	if spec == "" {
		spec = DefaultSweepCron
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := s.sweeper.PurgeExpired(ctx)
		if err != nil {
			log.Error().Err(err).Msg("expiry_sweep_failed")
			return
		}
		if removed > 0 {
			log.Info().Int("removed", removed).Msg("expiry_sweep_complete")
		}
	})
	if err != nil {
		return fmt.Errorf("registering sweep cron %q: %w", spec, err)
	}
	return nil
}

// Start begins executing registered cron jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries (for testing).
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
