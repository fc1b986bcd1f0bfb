package settings

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Refresher reloads the settings snapshot on a cron schedule so writes made
// by other processes sharing the store become visible
type Refresher struct {
	service *Service
	cron    *cron.Cron
	logger  arbor.ILogger
}

// NewRefresher creates a refresher for service
func NewRefresher(service *Service, logger arbor.ILogger) *Refresher {
	return &Refresher{
		service: service,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start schedules refreshes. An empty schedule disables refreshing.
func (r *Refresher) Start(schedule string) error {
	if schedule == "" {
		r.logger.Debug().Msg("Settings refresh disabled")
		return nil
	}

	if _, err := r.cron.AddFunc(schedule, r.refresh); err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info().Str("schedule", schedule).Msg("Settings refresh scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Debug().Msg("Settings refresh scheduler stopped")
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := r.service.Refresh(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Settings refresh failed, keeping previous snapshot")
		return
	}
	r.logger.Debug().Dur("duration", time.Since(start)).Msg("Settings refreshed")
}
