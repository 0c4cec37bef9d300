package service

import (
	"fmt"
	"math"

	"luckystake/models"

	"github.com/shopspring/decimal"
)

// MinDisplayedProbability is the smallest win chance rendered as a number
const MinDisplayedProbability = 0.01

// MaxAmount is the largest amount the ledger stores. Amount columns are
// NUMERIC(38, 18), which leaves twenty integer digits.
var MaxAmount = decimal.New(1, 20).Sub(decimal.New(1, -18))

var (
	hundred    = decimal.NewFromInt(100)
	maxTickets = decimal.NewFromInt(math.MaxInt64)
)

// TicketsFor returns the tickets a deposit earns in a pool: one ticket per
// currency unit per day of the pool's draw interval, rounded down. Counts
// beyond int64 saturate at math.MaxInt64.
func TicketsFor(amount decimal.Decimal, pool *models.Pool) int64 {
	if !amount.IsPositive() {
		return 0
	}
	tickets := amount.Mul(decimal.NewFromInt(pool.TicketMultiplier())).Floor()
	if tickets.GreaterThan(maxTickets) {
		return math.MaxInt64
	}
	return tickets.IntPart()
}

// TicketsFit reports whether a pool holding total could issue tickets for all
// of it without the ticket universe overflowing int64
func TicketsFit(total decimal.Decimal, pool *models.Pool) bool {
	return total.Mul(decimal.NewFromInt(pool.TicketMultiplier())).Floor().LessThanOrEqual(maxTickets)
}

// WinProbability returns the chance, in percent, that one of tickets wins a
// draw over a universe of universeSize tickets
func WinProbability(tickets, universeSize int64) float64 {
	if tickets <= 0 || universeSize <= 0 {
		return 0
	}
	if tickets >= universeSize {
		return 100
	}
	return float64(tickets) / float64(universeSize) * 100
}

// FormatWinProbability renders a percentage with two decimals. Any non-zero
// chance below 0.01% is shown as "<0.01%".
func FormatWinProbability(percent float64) string {
	if percent <= 0 {
		return "0.00%"
	}
	if percent < MinDisplayedProbability {
		return fmt.Sprintf("<%.2f%%", MinDisplayedProbability)
	}
	return fmt.Sprintf("%.2f%%", percent)
}

// ShareOfPool returns active / poolTotal, or zero for an empty pool
func ShareOfPool(active, poolTotal decimal.Decimal) decimal.Decimal {
	if !poolTotal.IsPositive() || !active.IsPositive() {
		return decimal.Zero
	}
	return active.Div(poolTotal)
}

// FormatSharePercent renders a share as a percentage with four decimals
func FormatSharePercent(share decimal.Decimal) string {
	return share.Mul(hundred).StringFixed(4)
}

// SumActiveTickets totals the tickets of active deposits
func SumActiveTickets(deposits []*models.Deposit) int64 {
	var total int64
	for _, d := range deposits {
		if d.IsActive() {
			total += d.Tickets
		}
	}
	return total
}
