package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit is a single stake placed by an account into a pool.
// A deposit is active until WithdrawnAt is set.
type Deposit struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	AccountID   string          `db:"account_id" json:"publicKey"`
	PoolID      string          `db:"pool_id" json:"poolType"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	TxHash      string          `db:"tx_hash" json:"txHash"`
	DepositedAt time.Time       `db:"deposited_at" json:"depositedAt"`
	WithdrawnAt *time.Time      `db:"withdrawn_at" json:"withdrawnAt"`
	Tickets     int64           `db:"tickets" json:"tickets"`
}

// IsActive returns true while the deposit counts toward pool totals
func (d *Deposit) IsActive() bool {
	return d.WithdrawnAt == nil
}

// Clone returns a deep copy of the deposit
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	c := *d
	if d.WithdrawnAt != nil {
		t := *d.WithdrawnAt
		c.WithdrawnAt = &t
	}
	return &c
}

// DepositHistory lists an account's deposits across all pools
type DepositHistory struct {
	Deposits    []*Deposit      `json:"deposits"`
	TotalActive decimal.Decimal `json:"totalActive"`
	Count       int             `json:"count"`
}
