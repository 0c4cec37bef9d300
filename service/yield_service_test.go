package service

import (
	"context"
	"testing"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccrueDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		total    string
		rate     string
		fraction string
		expected string
	}{
		{"one year", "1000", "0.05", "1", "50"},
		{"half year", "1000", "0.05", "0.5", "25"},
		{"empty pool", "0", "0.05", "1", "0"},
		{"zero fraction", "1000", "0.05", "0", "0"},
		{"negative fraction", "1000", "0.05", "-1", "0"},
		{"zero rate", "1000", "0", "1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AccrueDelta(dec(tt.total), dec(tt.rate), dec(tt.fraction))
			assert.True(t, got.Equal(dec(tt.expected)), "got %s", got)
		})
	}
}

func TestAccrueDelta_Linear(t *testing.T) {
	t.Parallel()

	total, rate := dec("400"), dec("0.05")
	whole := AccrueDelta(total, rate, dec("0.5"))
	halves := AccrueDelta(total, rate, dec("0.25")).Add(AccrueDelta(total, rate, dec("0.25")))
	assert.True(t, whole.Equal(halves), "%s != %s", whole, halves)
}

func TestFractionOfYear(t *testing.T) {
	t.Parallel()

	assert.True(t, FractionOfYear(365*24*time.Hour).Equal(decimal.NewFromInt(1)))
	assert.True(t, FractionOfYear(0).IsZero())
	assert.True(t, FractionOfYear(-time.Hour).IsZero())

	day, _ := FractionOfYear(24 * time.Hour).Float64()
	assert.InDelta(t, 1.0/365.0, day, 1e-12)
}

func TestYieldService_AccrueYield(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)
	m.expectCommit()

	weekly := testPool(models.PoolWeekly, 7)
	weekly.TotalDeposited = dec("400")
	monthly := testPool(models.PoolMonthly, 30)

	m.pools.On("GetAll", ctx).Return([]*models.Pool{weekly, monthly}, nil)
	m.pools.On("GetByIDForUpdate", ctx, models.PoolWeekly).Return(weekly, nil)
	m.pools.On("GetByIDForUpdate", ctx, models.PoolMonthly).Return(monthly, nil)
	m.pools.On("Update", ctx, weekly).Return(nil).Once()
	m.yieldRuns.On("Create", ctx, mock.MatchedBy(func(r *models.YieldRun) bool {
		return r.PoolsAffected == 1 && r.TotalAccrued.Equal(dec("20"))
	})).Return(nil)

	svc := NewYieldService(m.factory, dec("0.05"), 0)
	results, err := svc.AccrueYield(ctx, dec("1"))

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.PoolWeekly, results[0].PoolID)
	assert.True(t, results[0].Delta.Equal(dec("20")))
	assert.True(t, weekly.YieldAccrued.Equal(dec("20")))
	assert.True(t, results[1].Delta.IsZero())
	assert.True(t, monthly.YieldAccrued.IsZero())

	yieldEvents := m.uow.Publisher().OfType(events.EventTypeYieldUpdate)
	require.Len(t, yieldEvents, 1)
	assert.Len(t, yieldEvents[0].(events.YieldUpdateEvent).Pools, 2)
	m.assertExpectations(t)
}

func TestYieldService_AccrueYield_OneDay(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)
	m.expectCommit()

	weekly := testPool(models.PoolWeekly, 7)
	weekly.TotalDeposited = dec("400")

	m.pools.On("GetAll", ctx).Return([]*models.Pool{weekly}, nil)
	m.pools.On("GetByIDForUpdate", ctx, models.PoolWeekly).Return(weekly, nil)
	m.pools.On("Update", ctx, weekly).Return(nil)
	m.yieldRuns.On("Create", ctx, mock.Anything).Return(nil)

	oneDay := decimal.NewFromInt(1).Div(decimal.NewFromInt(365))
	_, err := NewYieldService(m.factory, DefaultAnnualRate, 0).AccrueYield(ctx, oneDay)

	require.NoError(t, err)
	accrued, _ := weekly.YieldAccrued.Float64()
	assert.InDelta(t, 0.0548, accrued, 0.0001)
	m.assertExpectations(t)
}

func TestYieldService_AccrueYield_RejectsNegativeFraction(t *testing.T) {
	t.Parallel()

	factory := new(MockUnitOfWorkFactory)
	_, err := NewYieldService(factory, DefaultAnnualRate, 0).AccrueYield(context.Background(), dec("-0.1"))

	require.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)
	factory.AssertNotCalled(t, "Create")
}

func TestYieldService_AccrueSinceLastRun(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("uses elapsed time since previous run", func(t *testing.T) {
		ctx := context.Background()
		m := newUoWMocks(ctx)
		m.expectCommit()

		pool := testPool(models.PoolDaily, 1)
		pool.TotalDeposited = dec("365")

		m.yieldRuns.On("GetLatest", ctx).Return(&models.YieldRun{RanAt: now.Add(-48 * time.Hour)}, nil)
		m.pools.On("GetAll", ctx).Return([]*models.Pool{pool}, nil)
		m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).Return(pool, nil)
		m.pools.On("Update", ctx, pool).Return(nil)
		m.yieldRuns.On("Create", ctx, mock.MatchedBy(func(r *models.YieldRun) bool {
			return r.RanAt.Equal(now)
		})).Return(nil)

		results, err := NewYieldService(m.factory, dec("0.05"), 0).AccrueSinceLastRun(ctx, now)

		require.NoError(t, err)
		require.Len(t, results, 1)
		// 365 * 0.05 * 2/365
		assert.True(t, pool.YieldAccrued.Round(10).Equal(dec("0.1")), "got %s", pool.YieldAccrued)
		m.assertExpectations(t)
	})

	t.Run("first run uses initial window", func(t *testing.T) {
		ctx := context.Background()
		m := newUoWMocks(ctx)
		m.expectCommit()

		pool := testPool(models.PoolDaily, 1)
		pool.TotalDeposited = dec("730")

		m.yieldRuns.On("GetLatest", ctx).Return(nil, nil)
		m.pools.On("GetAll", ctx).Return([]*models.Pool{pool}, nil)
		m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).Return(pool, nil)
		m.pools.On("Update", ctx, pool).Return(nil)
		m.yieldRuns.On("Create", ctx, mock.Anything).Return(nil)

		_, err := NewYieldService(m.factory, dec("0.05"), 24*time.Hour).AccrueSinceLastRun(ctx, now)

		require.NoError(t, err)
		assert.True(t, pool.YieldAccrued.Round(10).Equal(dec("0.1")), "got %s", pool.YieldAccrued)
		m.assertExpectations(t)
	})

	t.Run("nothing elapsed", func(t *testing.T) {
		ctx := context.Background()
		m := newUoWMocks(ctx)

		m.yieldRuns.On("GetLatest", ctx).Return(&models.YieldRun{RanAt: now}, nil)

		results, err := NewYieldService(m.factory, dec("0.05"), 0).AccrueSinceLastRun(ctx, now)

		require.NoError(t, err)
		assert.Nil(t, results)
		m.pools.AssertNotCalled(t, "GetAll", mock.Anything)
		m.uow.AssertNotCalled(t, "Commit")
		m.assertExpectations(t)
	})
}
