// Package worker runs the background draw and yield jobs.
package worker

import (
	"context"
	"fmt"
	"time"

	"luckystake/service"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultYieldSchedule accrues once a day at midnight UTC
const DefaultYieldSchedule = "@daily"

// YieldScheduler applies yield for the time elapsed since the last run on a
// cron schedule
type YieldScheduler struct {
	yield    service.YieldService
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// NewYieldScheduler validates schedule and prepares the scheduler
func NewYieldScheduler(yield service.YieldService, schedule string) (*YieldScheduler, error) {
	if schedule == "" {
		schedule = DefaultYieldSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid yield schedule %q: %w", schedule, err)
	}

	return &YieldScheduler{
		yield:    yield,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start registers the job and starts the cron loop. The returned function
// stops the loop and waits for a running accrual to finish.
func (s *YieldScheduler) Start(ctx context.Context) (func(), error) {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("failed to schedule yield accrual: %w", err)
	}
	s.cron.Start()

	log.WithField("schedule", s.schedule).Info("Yield scheduler started")

	return func() {
		<-s.cron.Stop().Done()
		log.Info("Yield scheduler stopped")
	}, nil
}

// RunOnce accrues yield up to now and returns the total accrued
func (s *YieldScheduler) RunOnce(ctx context.Context) decimal.Decimal {
	results, err := s.yield.AccrueSinceLastRun(ctx, s.now())
	if err != nil {
		log.WithError(err).Error("Scheduled yield accrual failed")
		return decimal.Zero
	}

	total := decimal.Zero
	for _, r := range results {
		total = total.Add(r.Delta)
	}
	log.WithFields(log.Fields{
		"pools": len(results),
		"total": total.String(),
	}).Info("Scheduled yield accrual completed")
	return total
}
