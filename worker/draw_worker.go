package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luckystake/models"
	"luckystake/service"

	log "github.com/sirupsen/logrus"
)

const (
	defaultIdleInterval = time.Hour
	defaultRetryDelay   = time.Minute
)

// DrawSummary counts the outcomes of one pass over the due pools
type DrawSummary struct {
	Drawn   int
	Skipped int
	Failed  int
}

// DrawWorker runs each pool's draw when its scheduled time arrives
type DrawWorker struct {
	uowFactory   service.UnitOfWorkFactory
	draws        service.DrawService
	idleInterval time.Duration
	retryDelay   time.Duration
	now          func() time.Time
}

// NewDrawWorker creates a new draw worker
func NewDrawWorker(uowFactory service.UnitOfWorkFactory, draws service.DrawService) *DrawWorker {
	return &DrawWorker{
		uowFactory:   uowFactory,
		draws:        draws,
		idleInterval: defaultIdleInterval,
		retryDelay:   defaultRetryDelay,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the draw loop and returns a function that stops it
func (w *DrawWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.Info("Draw worker started")

		for {
			summary, err := w.ProcessDuePools(ctx)
			if err != nil {
				log.Errorf("Error processing due pools: %v", err)
			}

			var wait time.Duration
			next, err := w.nextDrawTime(ctx)
			switch {
			case err != nil:
				log.Errorf("Failed to get next draw time: %v", err)
				wait = w.retryDelay
			case next == nil:
				log.Infof("No pools scheduled, checking again in %v", w.idleInterval)
				wait = w.idleInterval
			default:
				wait = next.Sub(w.now())
				if wait <= 0 {
					if summary.Failed == 0 {
						continue
					}
					// a pool keeps failing; back off instead of spinning on it
					wait = w.retryDelay
				}
				log.Infof("Next draw at %v (in %v)", next.UTC(), wait)
			}

			select {
			case <-ctx.Done():
				log.Info("Draw worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Draw worker shutting down (stop requested)...")
				return
			case <-time.After(wait):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// ProcessDuePools draws every pool whose scheduled time has passed. A pool
// with nothing to award has its schedule rolled forward instead.
func (w *DrawWorker) ProcessDuePools(ctx context.Context) (DrawSummary, error) {
	var summary DrawSummary

	due, err := w.duePools(ctx)
	if err != nil {
		return summary, err
	}
	if len(due) == 0 {
		log.Debug("No pools due for a draw")
		return summary, nil
	}

	log.Infof("Found %d pools due for a draw", len(due))

	for _, pool := range due {
		prize, err := w.draws.Draw(ctx, pool.ID)
		switch {
		case err == nil:
			summary.Drawn++
			log.WithFields(log.Fields{
				"pool":   pool.ID,
				"prize":  prize.ID,
				"amount": prize.Amount.String(),
			}).Info("Scheduled draw completed")
		case service.IsDrawPreconditionError(err):
			if skipErr := w.draws.SkipDraw(ctx, pool.ID); skipErr != nil {
				summary.Failed++
				log.Errorf("Failed to roll schedule for pool %s: %v", pool.ID, skipErr)
				continue
			}
			summary.Skipped++
			log.WithField("pool", pool.ID).WithError(err).Info("Scheduled draw skipped")
		default:
			var inProgress *service.DrawInProgressError
			if errors.As(err, &inProgress) {
				log.WithField("pool", pool.ID).Info("Draw already running, leaving it to the caller")
				continue
			}
			summary.Failed++
			log.Errorf("Error drawing pool %s: %v", pool.ID, err)
		}
	}

	log.WithFields(log.Fields{
		"due":     len(due),
		"drawn":   summary.Drawn,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("Completed scheduled draw processing")

	return summary, nil
}

func (w *DrawWorker) duePools(ctx context.Context) ([]*models.Pool, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pools, err := uow.PoolRepository().GetDuePools(ctx, w.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get due pools: %w", err)
	}
	return pools, nil
}

func (w *DrawWorker) nextDrawTime(ctx context.Context) (*time.Time, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.PoolRepository().GetNextDrawTime(ctx)
}
