package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"luckystake/database"
	"luckystake/models"

	"github.com/jackc/pgx/v5"
)

// YieldRunRepository implements the YieldRunRepository interface
type YieldRunRepository struct {
	q queryable
}

// NewYieldRunRepository creates a new yield run repository
func NewYieldRunRepository(db *database.DB) *YieldRunRepository {
	return &YieldRunRepository{q: db.Pool}
}

// newYieldRunRepositoryWithTx creates a new yield run repository with a transaction
func newYieldRunRepositoryWithTx(tx queryable) *YieldRunRepository {
	return &YieldRunRepository{q: tx}
}

// Create records an accrual run
func (r *YieldRunRepository) Create(ctx context.Context, run *models.YieldRun) error {
	summaryJSON, err := json.Marshal(run.ExecutionSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	query := `
		INSERT INTO yield_runs
		(id, ran_at, year_fraction, annual_rate, total_accrued, pools_affected, execution_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.q.Exec(ctx, query,
		run.ID,
		run.RanAt,
		run.YearFraction,
		run.AnnualRate,
		run.TotalAccrued,
		run.PoolsAffected,
		summaryJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create yield run at %s: %w", run.RanAt.Format("2006-01-02T15:04:05Z07:00"), err)
	}
	return nil
}

// GetLatest returns the most recent accrual run
func (r *YieldRunRepository) GetLatest(ctx context.Context) (*models.YieldRun, error) {
	query := `
		SELECT id, ran_at, year_fraction, annual_rate, total_accrued, pools_affected, execution_summary
		FROM yield_runs
		ORDER BY ran_at DESC
		LIMIT 1
	`

	var run models.YieldRun
	var summaryJSON []byte
	err := r.q.QueryRow(ctx, query).Scan(
		&run.ID,
		&run.RanAt,
		&run.YearFraction,
		&run.AnnualRate,
		&run.TotalAccrued,
		&run.PoolsAffected,
		&summaryJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest yield run: %w", err)
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}
	return &run, nil
}
