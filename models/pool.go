package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Well-known pool identifiers seeded on startup
const (
	PoolDaily    = "daily"
	PoolWeekly   = "weekly"
	PoolBiweekly = "biweekly"
	PoolMonthly  = "monthly"
)

// Pool is a time-boxed prize fund with a fixed draw interval
type Pool struct {
	ID             string              `db:"id" json:"type"`
	Name           string              `db:"name" json:"name"`
	IntervalDays   int                 `db:"interval_days" json:"intervalDays"`
	MinDeposit     decimal.Decimal     `db:"min_deposit" json:"minDeposit"`
	EstimatedAPY   decimal.Decimal     `db:"estimated_apy" json:"estimatedAPY"`
	Currency       string              `db:"currency" json:"currency"`
	TotalDeposited decimal.Decimal     `db:"total_deposited" json:"totalDeposited"`
	YieldAccrued   decimal.Decimal     `db:"yield_accrued" json:"yieldAccrued"`
	Participants   int                 `db:"participants" json:"participants"`
	NextDrawAt     time.Time           `db:"next_draw_at" json:"nextDrawTime"`
	PrizeHistory   []PrizeHistoryEntry `db:"prize_history" json:"prizeHistory"`
	CreatedAt      time.Time           `db:"created_at" json:"-"`
	UpdatedAt      time.Time           `db:"updated_at" json:"-"`
}

// PrizeHistoryEntry is the compact record of a past draw kept on the pool
type PrizeHistoryEntry struct {
	PrizeID string          `json:"prizeId"`
	Amount  decimal.Decimal `json:"amount"`
	Winner  string          `json:"winner"`
	DrawnAt time.Time       `json:"drawnAt"`
}

// TicketMultiplier is the number of tickets granted per currency unit
func (p *Pool) TicketMultiplier() int64 {
	if p.IntervalDays < 1 {
		return 1
	}
	return int64(p.IntervalDays)
}

// IsDue reports whether the scheduled draw time has been reached
func (p *Pool) IsDue(now time.Time) bool {
	return !now.Before(p.NextDrawAt)
}

// AppendHistory records a draw result, keeping at most limit entries with
// the most recent last.
func (p *Pool) AppendHistory(entry PrizeHistoryEntry, limit int) {
	p.PrizeHistory = append(p.PrizeHistory, entry)
	if limit > 0 && len(p.PrizeHistory) > limit {
		p.PrizeHistory = append([]PrizeHistoryEntry(nil), p.PrizeHistory[len(p.PrizeHistory)-limit:]...)
	}
}

// NextDrawAfter calculates the first scheduled draw strictly after from.
// Daily pools draw at midnight UTC, weekly pools on Monday, monthly pools on
// the first of the month; any other interval counts whole days from midnight.
func (p *Pool) NextDrawAfter(from time.Time) time.Time {
	from = from.UTC()
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	switch p.IntervalDays {
	case 1:
		return midnight.AddDate(0, 0, 1)
	case 7:
		daysUntilMonday := (int(time.Monday) - int(from.Weekday()) + 7) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		return midnight.AddDate(0, 0, daysUntilMonday)
	case 30:
		return time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	default:
		days := p.IntervalDays
		if days < 1 {
			days = 1
		}
		return midnight.AddDate(0, 0, days)
	}
}

// Clone returns a deep copy of the pool
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	c := *p
	c.PrizeHistory = append([]PrizeHistoryEntry(nil), p.PrizeHistory...)
	return &c
}

// Position is an account's stake in a single pool
type Position struct {
	PoolID         string          `json:"poolType"`
	DepositedTotal decimal.Decimal `json:"deposited"`
	Tickets        int64           `json:"tickets"`
	PoolTickets    int64           `json:"poolTickets"`
	Share          decimal.Decimal `json:"-"`
	SharePercent   string          `json:"sharePercent"`
	WinProbability string          `json:"winProbability"`
	Deposits       []*Deposit      `json:"deposits"`
}

// Snapshot is the state handed to a newly connected observer
type Snapshot struct {
	Pools        []*Pool  `json:"pools"`
	RecentPrizes []*Prize `json:"recentPrizes"`
}
