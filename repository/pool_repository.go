package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"luckystake/database"
	"luckystake/models"

	"github.com/jackc/pgx/v5"
)

// PoolRepository implements the PoolRepository interface
type PoolRepository struct {
	q queryable
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *database.DB) *PoolRepository {
	return &PoolRepository{q: db.Pool}
}

// newPoolRepositoryWithTx creates a new pool repository with a transaction
func newPoolRepositoryWithTx(tx queryable) *PoolRepository {
	return &PoolRepository{q: tx}
}

const poolColumns = `
	id, name, interval_days, min_deposit, estimated_apy, currency,
	total_deposited, yield_accrued, participants, next_draw_at,
	prize_history, created_at, updated_at`

func scanPool(row pgx.Row) (*models.Pool, error) {
	var pool models.Pool
	var historyJSON []byte
	err := row.Scan(
		&pool.ID,
		&pool.Name,
		&pool.IntervalDays,
		&pool.MinDeposit,
		&pool.EstimatedAPY,
		&pool.Currency,
		&pool.TotalDeposited,
		&pool.YieldAccrued,
		&pool.Participants,
		&pool.NextDrawAt,
		&historyJSON,
		&pool.CreatedAt,
		&pool.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pool.PrizeHistory = make([]models.PrizeHistoryEntry, 0)
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &pool.PrizeHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prize history: %w", err)
		}
	}
	return &pool, nil
}

func (r *PoolRepository) queryPools(ctx context.Context, query string, args ...any) ([]*models.Pool, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []*models.Pool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pools: %w", err)
	}
	return pools, nil
}

// GetAll returns every pool ordered by draw interval
func (r *PoolRepository) GetAll(ctx context.Context) ([]*models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools ORDER BY interval_days ASC, id ASC`

	pools, err := r.queryPools(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}
	return pools, nil
}

// GetByID retrieves a pool by its identifier
func (r *PoolRepository) GetByID(ctx context.Context, id string) (*models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE id = $1`

	pool, err := scanPool(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool %s: %w", id, err)
	}
	return pool, nil
}

// GetByIDForUpdate retrieves a pool and locks its row. Deposits, withdrawals,
// accrual and draws on the same pool serialize on this lock.
func (r *PoolRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE id = $1 FOR UPDATE`

	pool, err := scanPool(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock pool %s: %w", id, err)
	}
	return pool, nil
}

// Update persists a pool's balances, schedule and prize history
func (r *PoolRepository) Update(ctx context.Context, pool *models.Pool) error {
	historyJSON, err := marshalHistory(pool.PrizeHistory)
	if err != nil {
		return err
	}

	query := `
		UPDATE pools
		SET total_deposited = $1,
		    yield_accrued = $2,
		    participants = $3,
		    next_draw_at = $4,
		    prize_history = $5,
		    updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`

	err = r.q.QueryRow(ctx, query,
		pool.TotalDeposited,
		pool.YieldAccrued,
		pool.Participants,
		pool.NextDrawAt,
		historyJSON,
		pool.ID,
	).Scan(&pool.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pool %s not found", pool.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update pool %s: %w", pool.ID, err)
	}
	return nil
}

// Upsert inserts a pool from the catalog. An existing pool keeps its balances,
// schedule and history; only descriptive fields are refreshed.
func (r *PoolRepository) Upsert(ctx context.Context, pool *models.Pool) error {
	historyJSON, err := marshalHistory(pool.PrizeHistory)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pools (
			id, name, interval_days, min_deposit, estimated_apy, currency,
			total_deposited, yield_accrued, participants, next_draw_at, prize_history
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    min_deposit = EXCLUDED.min_deposit,
		    estimated_apy = EXCLUDED.estimated_apy,
		    currency = EXCLUDED.currency,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		pool.ID,
		pool.Name,
		pool.IntervalDays,
		pool.MinDeposit,
		pool.EstimatedAPY,
		pool.Currency,
		pool.TotalDeposited,
		pool.YieldAccrued,
		pool.Participants,
		pool.NextDrawAt,
		historyJSON,
	).Scan(&pool.CreatedAt, &pool.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pool %s: %w", pool.ID, err)
	}
	return nil
}

// GetDuePools returns pools whose scheduled draw time has passed
func (r *PoolRepository) GetDuePools(ctx context.Context, now time.Time) ([]*models.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM pools
		WHERE next_draw_at <= $1
		ORDER BY next_draw_at ASC, id ASC
	`

	pools, err := r.queryPools(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due pools: %w", err)
	}
	return pools, nil
}

// GetNextDrawTime returns the earliest scheduled draw, or nil with no pools
func (r *PoolRepository) GetNextDrawTime(ctx context.Context) (*time.Time, error) {
	var next *time.Time
	if err := r.q.QueryRow(ctx, `SELECT MIN(next_draw_at) FROM pools`).Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to get next draw time: %w", err)
	}
	return next, nil
}

func marshalHistory(history []models.PrizeHistoryEntry) ([]byte, error) {
	if history == nil {
		history = make([]models.PrizeHistoryEntry, 0)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prize history: %w", err)
	}
	return historyJSON, nil
}
