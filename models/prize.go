package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Prize records the outcome of a single draw
type Prize struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	WinnerID      string          `db:"winner_id" json:"winner"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PoolID        string          `db:"pool_id" json:"poolType"`
	DrawnAt       time.Time       `db:"drawn_at" json:"drawnAt"`
	Participants  int             `db:"participants" json:"participants"`
	TotalTickets  int64           `db:"total_tickets" json:"totalTickets"`
	WinnerTickets int64           `db:"winner_tickets" json:"winnerTickets"`
	TxHash        *string         `db:"tx_hash" json:"txHash"`
}

// IsSettled returns true once a payout reference has been attached
func (p *Prize) IsSettled() bool {
	return p.TxHash != nil
}

// Clone returns a deep copy of the prize
func (p *Prize) Clone() *Prize {
	if p == nil {
		return nil
	}
	c := *p
	if p.TxHash != nil {
		h := *p.TxHash
		c.TxHash = &h
	}
	return &c
}

// PrizeHistory lists prizes won by a single account
type PrizeHistory struct {
	Prizes   []*Prize        `json:"prizes"`
	TotalWon decimal.Decimal `json:"totalWon"`
}
