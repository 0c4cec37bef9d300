package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a depositor identified by their wallet public key
type Account struct {
	ID             string          `db:"id" json:"publicKey"`
	JoinedAt       time.Time       `db:"joined_at" json:"joinedAt"`
	TotalDeposited decimal.Decimal `db:"total_deposited" json:"totalDeposited"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn" json:"totalWithdrawn"`
	Tickets        int64           `db:"tickets" json:"tickets"`
	PrivacyMode    bool            `db:"privacy_mode" json:"privacyMode"`
	AutoStrategy   *AutoStrategy   `db:"auto_strategy" json:"autoStrategy,omitempty"`
	LastLoginAt    *time.Time      `db:"last_login_at" json:"lastLoginAt,omitempty"`
}

// AutoStrategy describes a recurring deposit preference. The ledger stores it
// without acting on it.
type AutoStrategy struct {
	Enabled       bool            `json:"enabled"`
	PoolID        string          `json:"poolType"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
	Frequency     string          `json:"frequency"`
}

// AccountSettings is the mutable subset of an account
type AccountSettings struct {
	PrivacyMode  *bool         `json:"privacyMode"`
	AutoStrategy *AutoStrategy `json:"autoStrategy"`
}

// AccountProfile is the account summary shown to its owner
type AccountProfile struct {
	Account
	ActiveDeposits int             `json:"activeDeposits"`
	TotalPrizeWon  decimal.Decimal `json:"totalPrizeWon"`
	PrizesWon      int             `json:"prizesWon"`
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.AutoStrategy != nil {
		s := *a.AutoStrategy
		c.AutoStrategy = &s
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
