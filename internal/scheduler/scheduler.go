// Package scheduler runs standing scrape searches on cron schedules.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/api"
	"github.com/mattsolle/jobscout/internal/config"
)

const runBudget = 10 * time.Minute

// Scheduler triggers configured scrape requests through the same service
// path as POST /scrape.
type Scheduler struct {
	cron   *cron.Cron
	svc    api.ScrapeService
	logger *zap.Logger
}

// New registers the standing searches and returns the scheduler. An invalid
// cron expression fails registration.
func New(searches []config.StandingSearch, svc api.ScrapeService, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(),
		svc:    svc,
		logger: logger,
	}
	for _, search := range searches {
		req := search.Request()
		log := logger.With(
			zap.String("schedule", search.Schedule),
			zap.String("search_term", req.SearchTerm),
		)
		_, err := s.cron.AddFunc(search.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), runBudget)
			defer cancel()
			summary, err := s.svc.RunScrape(ctx, req)
			if err != nil {
				log.Error("standing search failed", zap.Error(err))
				return
			}
			log.Info("standing search complete",
				zap.Int("returned", summary.Returned),
				zap.Int("inserted", summary.Inserted),
			)
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for in-flight runs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries exposes the registered cron entries (for tests).
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
