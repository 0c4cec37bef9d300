package models

import "github.com/shopspring/decimal"

// LeaderboardEntry is one public row of the depositor leaderboard
type LeaderboardEntry struct {
	Rank            int             `json:"rank"`
	MaskedAccountID string          `json:"publicKey"`
	TotalDeposited  decimal.Decimal `json:"totalDeposited"`
	Tickets         int64           `json:"tickets"`
}
