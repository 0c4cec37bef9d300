package service

import (
	"context"
	"fmt"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultAnnualRate is the simulated annual yield of every pool
var DefaultAnnualRate = decimal.RequireFromString("0.05")

const year = 365 * 24 * time.Hour

// AccrueDelta returns the yield earned by total over yearFraction of a year
// at annualRate. The result is exact, so accruing f once equals accruing f/2
// twice.
func AccrueDelta(total, annualRate, yearFraction decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() || !annualRate.IsPositive() || !yearFraction.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(annualRate).Mul(yearFraction)
}

// FractionOfYear converts an elapsed duration to a fraction of a 365-day year
func FractionOfYear(elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(year)))
}

// yieldService implements YieldService
type yieldService struct {
	uowFactory     UnitOfWorkFactory
	annualRate     decimal.Decimal
	initialElapsed time.Duration
	now            func() time.Time
}

// NewYieldService creates a new yield service. The first scheduled run, with
// no previous run recorded, accrues for initialElapsed.
func NewYieldService(uowFactory UnitOfWorkFactory, annualRate decimal.Decimal, initialElapsed time.Duration) YieldService {
	if !annualRate.IsPositive() {
		annualRate = DefaultAnnualRate
	}
	if initialElapsed <= 0 {
		initialElapsed = 24 * time.Hour
	}
	return &yieldService{
		uowFactory:     uowFactory,
		annualRate:     annualRate,
		initialElapsed: initialElapsed,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AccrueYield applies yearFraction of the annual rate to every pool. Each
// pool grows from its deposited balance as seen under its row lock.
func (s *yieldService) AccrueYield(ctx context.Context, yearFraction decimal.Decimal) ([]models.PoolYield, error) {
	if yearFraction.IsNegative() {
		return nil, &ValidationError{Field: "yearFraction", Message: "must not be negative"}
	}

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	results, err := s.accrue(ctx, uow, yearFraction, s.now())
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return results, nil
}

// AccrueSinceLastRun accrues for the time elapsed since the previous recorded
// run. Calling it twice in a row accrues nothing the second time.
func (s *yieldService) AccrueSinceLastRun(ctx context.Context, now time.Time) ([]models.PoolYield, error) {
	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	latest, err := uow.YieldRunRepository().GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest yield run: %w", err)
	}

	elapsed := s.initialElapsed
	if latest != nil {
		elapsed = now.Sub(latest.RanAt)
	}
	if elapsed <= 0 {
		log.WithField("elapsed", elapsed).Debug("Yield already accrued up to now")
		return nil, nil
	}

	results, err := s.accrue(ctx, uow, FractionOfYear(elapsed), now)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return results, nil
}

func (s *yieldService) accrue(ctx context.Context, uow UnitOfWork, yearFraction decimal.Decimal, ranAt time.Time) ([]models.PoolYield, error) {
	started := time.Now()

	pools, err := uow.PoolRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}

	results := make([]models.PoolYield, 0, len(pools))
	totalAccrued := decimal.Zero
	affected := 0
	for _, p := range pools {
		pool, err := uow.PoolRepository().GetByIDForUpdate(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock pool %s: %w", p.ID, err)
		}
		if pool == nil {
			continue
		}

		delta := AccrueDelta(pool.TotalDeposited, s.annualRate, yearFraction)
		if delta.IsPositive() {
			pool.YieldAccrued = pool.YieldAccrued.Add(delta)
			if err := uow.PoolRepository().Update(ctx, pool); err != nil {
				return nil, fmt.Errorf("failed to update pool %s: %w", pool.ID, err)
			}
			totalAccrued = totalAccrued.Add(delta)
			affected++
		}

		results = append(results, models.PoolYield{
			PoolID:       pool.ID,
			Delta:        delta,
			YieldAccrued: pool.YieldAccrued,
		})
	}

	run := &models.YieldRun{
		ID:            uuid.New(),
		RanAt:         ranAt.UTC(),
		YearFraction:  yearFraction,
		AnnualRate:    s.annualRate,
		TotalAccrued:  totalAccrued,
		PoolsAffected: affected,
		ExecutionSummary: map[string]interface{}{
			"pools_checked":     len(pools),
			"execution_time_ms": time.Since(started).Milliseconds(),
		},
	}
	if err := uow.YieldRunRepository().Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record yield run: %w", err)
	}

	uow.EventBus().Publish(events.YieldUpdateEvent{Pools: results})

	log.WithFields(log.Fields{
		"yearFraction":  yearFraction.String(),
		"annualRate":    s.annualRate.String(),
		"totalAccrued":  totalAccrued.String(),
		"poolsAffected": affected,
	}).Info("Yield accrued")

	return results, nil
}
