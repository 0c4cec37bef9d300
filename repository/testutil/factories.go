package testutil

import (
	"time"

	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestPool creates an empty pool due one day from now
func CreateTestPool(id string, intervalDays int) *models.Pool {
	return &models.Pool{
		ID:             id,
		Name:           id + " pool",
		IntervalDays:   intervalDays,
		MinDeposit:     decimal.NewFromInt(1),
		EstimatedAPY:   decimal.RequireFromString("4.2"),
		Currency:       "USDC",
		TotalDeposited: decimal.Zero,
		YieldAccrued:   decimal.Zero,
		NextDrawAt:     time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second),
		PrizeHistory:   []models.PrizeHistoryEntry{},
	}
}

// CreateTestDeposit creates an active deposit with tickets for a weekly multiplier
func CreateTestDeposit(accountID, poolID string, amount int64) *models.Deposit {
	return &models.Deposit{
		ID:          uuid.New(),
		AccountID:   accountID,
		PoolID:      poolID,
		Amount:      decimal.NewFromInt(amount),
		TxHash:      "tx-" + uuid.NewString(),
		DepositedAt: time.Now().UTC().Truncate(time.Microsecond),
		Tickets:     amount * 7,
	}
}

// CreateTestPrize creates an unsettled prize
func CreateTestPrize(winnerID, poolID string, amount string, drawnAt time.Time) *models.Prize {
	return &models.Prize{
		ID:            uuid.New(),
		WinnerID:      winnerID,
		Amount:        decimal.RequireFromString(amount),
		PoolID:        poolID,
		DrawnAt:       drawnAt.UTC().Truncate(time.Microsecond),
		Participants:  2,
		TotalTickets:  2800,
		WinnerTickets: 700,
	}
}

// CreateTestYieldRun creates a yield run record
func CreateTestYieldRun(ranAt time.Time) *models.YieldRun {
	return &models.YieldRun{
		ID:            uuid.New(),
		RanAt:         ranAt.UTC().Truncate(time.Microsecond),
		YearFraction:  decimal.RequireFromString("0.00273972"),
		AnnualRate:    decimal.RequireFromString("0.05"),
		TotalAccrued:  decimal.RequireFromString("0.0548"),
		PoolsAffected: 1,
		ExecutionSummary: map[string]interface{}{
			"pools_checked": 4,
		},
	}
}
