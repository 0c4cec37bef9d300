package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultPrizeHistoryLimit bounds the history kept on each pool
const DefaultPrizeHistoryLimit = 50

// DrawState is the lifecycle of a pool's draw cycle
type DrawState string

const (
	DrawStateIdle    DrawState = "idle"
	DrawStateDrawing DrawState = "drawing"
	DrawStateSettled DrawState = "settled"
)

// drawTracker guards against overlapping draws of the same pool within this process
type drawTracker struct {
	mu     sync.Mutex
	states map[string]DrawState
}

func newDrawTracker() *drawTracker {
	return &drawTracker{states: make(map[string]DrawState)}
}

func (t *drawTracker) begin(poolID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[poolID] == DrawStateDrawing {
		return &DrawInProgressError{PoolID: poolID}
	}
	t.states[poolID] = DrawStateDrawing
	return nil
}

// finish moves a pool out of Drawing. A settled cycle passes through Settled
// on its way back to Idle.
func (t *drawTracker) finish(poolID string, settled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if settled {
		t.states[poolID] = DrawStateSettled
		log.WithField("pool", poolID).Debug("Draw cycle settled")
	}
	delete(t.states, poolID)
}

func (t *drawTracker) state(poolID string) DrawState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[poolID]; ok {
		return s
	}
	return DrawStateIdle
}

// drawService implements DrawService
type drawService struct {
	uowFactory   UnitOfWorkFactory
	rng          RandomSource
	historyLimit int
	tracker      *drawTracker
	now          func() time.Time
}

// NewDrawService creates a new draw service
func NewDrawService(uowFactory UnitOfWorkFactory, rng RandomSource, historyLimit int) DrawService {
	if rng == nil {
		rng = NewCryptoRandom()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultPrizeHistoryLimit
	}
	return &drawService{
		uowFactory:   uowFactory,
		rng:          rng,
		historyLimit: historyLimit,
		tracker:      newDrawTracker(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// State reports the draw state of a pool
func (s *drawService) State(poolID string) DrawState {
	return s.tracker.state(poolID)
}

// Draw picks a ticket-weighted winner and awards the pool's accrued yield.
// The prize, the yield reset and the history entry commit together.
func (s *drawService) Draw(ctx context.Context, poolID string) (*models.Prize, error) {
	if err := s.tracker.begin(poolID); err != nil {
		return nil, err
	}
	settled := false
	defer func() { s.tracker.finish(poolID, settled) }()

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// Lock the pool and check there is something to award
	pool, err := uow.PoolRepository().GetByIDForUpdate(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pool: %w", err)
	}
	if pool == nil {
		return nil, &NotFoundError{Resource: "pool", ID: poolID}
	}
	if !pool.YieldAccrued.IsPositive() {
		return nil, &NoYieldError{PoolID: poolID}
	}

	// Build the ticket universe from active deposits
	deposits, err := uow.DepositRepository().GetByPool(ctx, poolID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get active deposits: %w", err)
	}
	universe := NewTicketUniverse(deposits)
	if universe.Total() == 0 {
		return nil, &NoParticipantsError{PoolID: poolID}
	}

	winning, err := universe.Pick(s.rng)
	if err != nil {
		return nil, fmt.Errorf("failed to select winning ticket: %w", err)
	}

	// Record the prize
	now := s.now()
	prize := &models.Prize{
		ID:            uuid.New(),
		WinnerID:      winning.AccountID,
		Amount:        pool.YieldAccrued,
		PoolID:        poolID,
		DrawnAt:       now,
		Participants:  universe.Participants(),
		TotalTickets:  universe.Total(),
		WinnerTickets: universe.AccountTickets(winning.AccountID),
	}
	if err := uow.PrizeRepository().Create(ctx, prize); err != nil {
		return nil, fmt.Errorf("failed to create prize: %w", err)
	}

	// Reset the prize pot and advance the schedule
	pool.YieldAccrued = decimal.Zero
	pool.AppendHistory(models.PrizeHistoryEntry{
		PrizeID: prize.ID.String(),
		Amount:  prize.Amount,
		Winner:  prize.WinnerID,
		DrawnAt: now,
	}, s.historyLimit)
	if pool.IsDue(now) {
		pool.NextDrawAt = pool.NextDrawAfter(now)
	}
	if err := uow.PoolRepository().Update(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to update pool: %w", err)
	}

	uow.EventBus().Publish(events.PrizeDrawnEvent{Prize: prize, Pool: pool})
	uow.EventBus().Publish(events.PoolUpdateEvent{PoolID: pool.ID, Pool: pool})

	// Commit the transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	settled = true

	log.WithFields(log.Fields{
		"pool":          poolID,
		"prize":         prize.ID,
		"winner":        prize.WinnerID,
		"amount":        prize.Amount.String(),
		"participants":  prize.Participants,
		"totalTickets":  prize.TotalTickets,
		"winnerTickets": prize.WinnerTickets,
	}).Info("Prize drawn")

	return prize, nil
}

// SkipDraw moves a due pool's schedule forward without drawing. It is used
// when a scheduled draw finds nothing to award or nobody to award it to.
func (s *drawService) SkipDraw(ctx context.Context, poolID string) error {
	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	pool, err := uow.PoolRepository().GetByIDForUpdate(ctx, poolID)
	if err != nil {
		return fmt.Errorf("failed to lock pool: %w", err)
	}
	if pool == nil {
		return &NotFoundError{Resource: "pool", ID: poolID}
	}

	now := s.now()
	if !pool.IsDue(now) {
		return nil
	}
	pool.NextDrawAt = pool.NextDrawAfter(now)
	if err := uow.PoolRepository().Update(ctx, pool); err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	uow.EventBus().Publish(events.PoolUpdateEvent{PoolID: pool.ID, Pool: pool})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsDrawPreconditionError reports whether err means a draw had nothing to do
func IsDrawPreconditionError(err error) bool {
	var noYield *NoYieldError
	var noParticipants *NoParticipantsError
	return errors.As(err, &noYield) || errors.As(err, &noParticipants)
}
