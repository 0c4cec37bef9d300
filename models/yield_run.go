package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// YieldRun represents one application of yield accrual across all pools
type YieldRun struct {
	ID               uuid.UUID              `db:"id"`
	RanAt            time.Time              `db:"ran_at"`
	YearFraction     decimal.Decimal        `db:"year_fraction"`
	AnnualRate       decimal.Decimal        `db:"annual_rate"`
	TotalAccrued     decimal.Decimal        `db:"total_accrued"`
	PoolsAffected    int                    `db:"pools_affected"`
	ExecutionSummary map[string]interface{} `db:"execution_summary"`
}

// PoolYield is the per-pool result of an accrual run
type PoolYield struct {
	PoolID       string          `json:"poolType"`
	Delta        decimal.Decimal `json:"delta"`
	YieldAccrued decimal.Decimal `json:"yieldAccrued"`
}
