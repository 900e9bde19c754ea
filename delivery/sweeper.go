package delivery

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs a sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

/* Sweeper periodically runs delivery sweeps on a cron schedule.
 * Overlapping runs are tolerated: re-processing a delivery twice is an
 * accepted outcome of the at-least-once guarantee, so no lock is taken.
 */
type Sweeper struct {
	service UseCase
	cron    *cron.Cron
}

// NewSweeper creates a sweeper for the given service
func NewSweeper(service UseCase) *Sweeper {
	return &Sweeper{
		service: service,
		cron:    cron.New(),
	}
}

// Start registers the schedule and begins running sweeps in the background.
// An empty schedule falls back to the default.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	_, err := s.cron.AddFunc(schedule, func() {
		results, err := s.service.Sweep(ctx)
		if err != nil {
			log.Printf("ERROR: delivery sweep failed: %v", err)
			return
		}
		if len(results) > 0 {
			log.Printf("delivery sweep processed %d deliveries", len(results))
		}
	})
	if err != nil {
		return fmt.Errorf("registering sweep schedule: %w", err)
	}

	s.cron.Start()
	log.Printf("delivery sweeper started (%s)", schedule)
	return nil
}

// Stop halts the background schedule, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Println("delivery sweeper stopped")
}
