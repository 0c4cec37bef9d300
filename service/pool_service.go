package service

import (
	"context"
	"fmt"
	"strings"

	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	// MaxRecentPrizes caps public prize listings
	MaxRecentPrizes = 50
	// SnapshotPrizeCount is the number of prizes sent to new observers
	SnapshotPrizeCount = 5
)

// poolService implements PoolService
type poolService struct {
	uowFactory UnitOfWorkFactory
}

// NewPoolService creates a new pool service
func NewPoolService(uowFactory UnitOfWorkFactory) PoolService {
	return &poolService{uowFactory: uowFactory}
}

// SeedPools inserts the pool catalog, keeping existing balances
func (s *poolService) SeedPools(ctx context.Context, pools []*models.Pool) error {
	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	for _, pool := range pools {
		if err := uow.PoolRepository().Upsert(ctx, pool); err != nil {
			return fmt.Errorf("failed to seed pool %s: %w", pool.ID, err)
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("pools", len(pools)).Info("Pool catalog seeded")
	return nil
}

// ListPools returns every pool
func (s *poolService) ListPools(ctx context.Context) ([]*models.Pool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pools, err := uow.PoolRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}
	return pools, nil
}

// GetPool returns a single pool
func (s *poolService) GetPool(ctx context.Context, poolID string) (*models.Pool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pool, err := uow.PoolRepository().GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	if pool == nil {
		return nil, &NotFoundError{Resource: "pool", ID: poolID}
	}
	return pool, nil
}

// AccountPosition returns an account's stake in a pool
func (s *poolService) AccountPosition(ctx context.Context, accountID, poolID string) (*models.Position, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pool, err := uow.PoolRepository().GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	if pool == nil {
		return nil, &NotFoundError{Resource: "pool", ID: poolID}
	}

	active, err := uow.DepositRepository().GetByPool(ctx, poolID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool deposits: %w", err)
	}

	position := &models.Position{
		PoolID:         poolID,
		DepositedTotal: decimal.Zero,
		Deposits:       make([]*models.Deposit, 0),
	}
	for _, d := range active {
		position.PoolTickets += d.Tickets
		if d.AccountID != accountID {
			continue
		}
		position.DepositedTotal = position.DepositedTotal.Add(d.Amount)
		position.Tickets += d.Tickets
		position.Deposits = append(position.Deposits, d)
	}

	position.Share = ShareOfPool(position.DepositedTotal, pool.TotalDeposited)
	position.SharePercent = FormatSharePercent(position.Share)
	position.WinProbability = FormatWinProbability(WinProbability(position.Tickets, position.PoolTickets))
	return position, nil
}

// RecentPrizes returns the latest prizes across all pools
func (s *poolService) RecentPrizes(ctx context.Context, limit int) ([]*models.Prize, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prizes, err := uow.PrizeRepository().GetRecent(ctx, clampPrizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get recent prizes: %w", err)
	}
	return prizes, nil
}

// Snapshot returns pools and recent prizes as one consistent view
func (s *poolService) Snapshot(ctx context.Context, prizeLimit int) (*models.Snapshot, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pools, err := uow.PoolRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}
	if prizeLimit <= 0 {
		prizeLimit = SnapshotPrizeCount
	}
	prizes, err := uow.PrizeRepository().GetRecent(ctx, clampPrizeLimit(prizeLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get recent prizes: %w", err)
	}
	return &models.Snapshot{Pools: pools, RecentPrizes: prizes}, nil
}

// SettlePrize attaches the payout transaction reference to a prize. A prize
// can only be settled once.
func (s *poolService) SettlePrize(ctx context.Context, prizeID, txHash string) (*models.Prize, error) {
	id, err := uuid.Parse(prizeID)
	if err != nil {
		return nil, &NotFoundError{Resource: "prize", ID: prizeID}
	}
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, &ValidationError{Field: "txHash", Message: "is required"}
	}

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	prize, err := uow.PrizeRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get prize: %w", err)
	}
	if prize == nil {
		return nil, &NotFoundError{Resource: "prize", ID: prizeID}
	}
	if prize.IsSettled() {
		return nil, &ValidationError{Field: "txHash", Message: fmt.Sprintf("prize %s already settled", prizeID)}
	}

	if err := uow.PrizeRepository().SetTxHash(ctx, id, txHash); err != nil {
		return nil, fmt.Errorf("failed to settle prize: %w", err)
	}
	prize.TxHash = &txHash

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return prize, nil
}

func clampPrizeLimit(limit int) int {
	if limit <= 0 || limit > MaxRecentPrizes {
		return MaxRecentPrizes
	}
	return limit
}
