package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPool_NextDrawAfter(t *testing.T) {
	t.Parallel()

	// Wednesday
	from := time.Date(2025, 1, 15, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		name         string
		intervalDays int
		from         time.Time
		expected     time.Time
	}{
		{
			name:         "daily draws at next midnight",
			intervalDays: 1,
			from:         from,
			expected:     time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:         "weekly draws next monday",
			intervalDays: 7,
			from:         from,
			expected:     time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:         "weekly on a monday rolls a full week",
			intervalDays: 7,
			from:         time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
			expected:     time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name:         "monthly draws on the first",
			intervalDays: 30,
			from:         from,
			expected:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:         "monthly wraps the year",
			intervalDays: 30,
			from:         time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
			expected:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:         "custom interval counts days",
			intervalDays: 15,
			from:         from,
			expected:     time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:         "non-utc input is normalized",
			intervalDays: 1,
			from:         time.Date(2025, 1, 15, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600)),
			expected:     time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pool := &Pool{IntervalDays: tt.intervalDays}
			next := pool.NextDrawAfter(tt.from)
			assert.Equal(t, tt.expected, next)
			assert.True(t, next.After(tt.from))
		})
	}
}

func TestPool_AppendHistory(t *testing.T) {
	t.Parallel()

	pool := &Pool{ID: PoolWeekly}
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		pool.AppendHistory(PrizeHistoryEntry{
			Amount:  decimal.NewFromInt(int64(i)),
			Winner:  "GACCOUNT",
			DrawnAt: base.AddDate(0, 0, i),
		}, 3)
	}

	assert.Len(t, pool.PrizeHistory, 3)
	assert.True(t, decimal.NewFromInt(2).Equal(pool.PrizeHistory[0].Amount))
	assert.True(t, decimal.NewFromInt(4).Equal(pool.PrizeHistory[2].Amount))
}

func TestPool_TicketMultiplier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(7), (&Pool{IntervalDays: 7}).TicketMultiplier())
	assert.Equal(t, int64(1), (&Pool{IntervalDays: 0}).TicketMultiplier())
}

func TestPool_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	pool := &Pool{ID: PoolDaily, PrizeHistory: []PrizeHistoryEntry{{Winner: "A"}}}
	clone := pool.Clone()
	clone.PrizeHistory[0].Winner = "B"
	clone.TotalDeposited = decimal.NewFromInt(10)

	assert.Equal(t, "A", pool.PrizeHistory[0].Winner)
	assert.True(t, pool.TotalDeposited.IsZero())
}
