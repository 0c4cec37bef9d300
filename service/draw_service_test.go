package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDrawService_Draw_AwardsYieldToTicketOwner(t *testing.T) {
	tests := []struct {
		name           string
		slot           int64
		expectedWinner string
		winnerTickets  int64
	}{
		{"first ticket", 0, accountA, 700},
		{"last ticket of first deposit", 699, accountA, 700},
		{"first ticket of second deposit", 700, accountB, 2100},
		{"last ticket", 2799, accountB, 2100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := newUoWMocks(ctx)
			m.expectCommit()

			pool := testPool(models.PoolWeekly, 7)
			pool.TotalDeposited = dec("400")
			pool.YieldAccrued = dec("0.0547945")
			deposits := []*models.Deposit{
				testDeposit(accountA, models.PoolWeekly, "100", 700),
				testDeposit(accountB, models.PoolWeekly, "300", 2100),
			}

			rng := new(MockRandomSource)
			rng.On("Int63n", int64(2800)).Return(tt.slot, nil)

			m.pools.On("GetByIDForUpdate", ctx, models.PoolWeekly).Return(pool, nil)
			m.deposits.On("GetByPool", ctx, models.PoolWeekly, true).Return(deposits, nil)
			m.prizes.On("Create", ctx, mock.MatchedBy(func(p *models.Prize) bool {
				return p.WinnerID == tt.expectedWinner && p.Amount.Equal(dec("0.0547945"))
			})).Return(nil)
			m.pools.On("Update", ctx, mock.MatchedBy(func(p *models.Pool) bool {
				return p.YieldAccrued.IsZero() && len(p.PrizeHistory) == 1
			})).Return(nil)

			svc := NewDrawService(m.factory, rng, 0)
			prize, err := svc.Draw(ctx, models.PoolWeekly)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedWinner, prize.WinnerID)
			assert.Equal(t, 2, prize.Participants)
			assert.Equal(t, int64(2800), prize.TotalTickets)
			assert.Equal(t, tt.winnerTickets, prize.WinnerTickets)
			assert.False(t, prize.IsSettled())

			assert.Equal(t, prize.ID.String(), pool.PrizeHistory[0].PrizeID)
			assert.Equal(t, tt.expectedWinner, pool.PrizeHistory[0].Winner)
			assert.Equal(t, DrawStateIdle, svc.State(models.PoolWeekly))

			published := m.uow.Publisher()
			assert.Len(t, published.OfType(events.EventTypePrizeDrawn), 1)
			assert.Len(t, published.OfType(events.EventTypePoolUpdate), 1)

			rng.AssertExpectations(t)
			m.assertExpectations(t)
		})
	}
}

func TestDrawService_Draw_WinnerTicketsSumAcrossDeposits(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)
	m.expectCommit()

	pool := testPool(models.PoolDaily, 1)
	pool.YieldAccrued = dec("1")
	deposits := []*models.Deposit{
		testDeposit(accountA, models.PoolDaily, "10", 10),
		testDeposit(accountB, models.PoolDaily, "5", 5),
		testDeposit(accountA, models.PoolDaily, "20", 20),
	}

	rng := new(MockRandomSource)
	rng.On("Int63n", int64(35)).Return(int64(30), nil)

	m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).Return(pool, nil)
	m.deposits.On("GetByPool", ctx, models.PoolDaily, true).Return(deposits, nil)
	m.prizes.On("Create", ctx, mock.Anything).Return(nil)
	m.pools.On("Update", ctx, mock.Anything).Return(nil)

	prize, err := NewDrawService(m.factory, rng, 0).Draw(ctx, models.PoolDaily)

	require.NoError(t, err)
	assert.Equal(t, accountA, prize.WinnerID)
	assert.Equal(t, int64(30), prize.WinnerTickets)
	assert.Equal(t, 2, prize.Participants)
	m.assertExpectations(t)
}

func TestDrawService_Draw_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		yield    string
		deposits []*models.Deposit
		check    func(t *testing.T, err error)
	}{
		{
			name:     "no yield",
			yield:    "0",
			deposits: nil,
			check: func(t *testing.T, err error) {
				var target *NoYieldError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:     "no active deposits",
			yield:    "5",
			deposits: []*models.Deposit{},
			check: func(t *testing.T, err error) {
				var target *NoParticipantsError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:  "only withdrawn or ticketless deposits",
			yield: "5",
			deposits: func() []*models.Deposit {
				withdrawnAt := time.Now().UTC()
				gone := testDeposit(accountA, models.PoolWeekly, "10", 70)
				gone.WithdrawnAt = &withdrawnAt
				return []*models.Deposit{gone, testDeposit(accountB, models.PoolWeekly, "0.01", 0)}
			}(),
			check: func(t *testing.T, err error) {
				var target *NoParticipantsError
				assert.True(t, errors.As(err, &target))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := newUoWMocks(ctx)

			pool := testPool(models.PoolWeekly, 7)
			pool.YieldAccrued = dec(tt.yield)
			m.pools.On("GetByIDForUpdate", ctx, models.PoolWeekly).Return(pool, nil)
			if tt.deposits != nil {
				m.deposits.On("GetByPool", ctx, models.PoolWeekly, true).Return(tt.deposits, nil)
			}

			rng := new(MockRandomSource)
			_, err := NewDrawService(m.factory, rng, 0).Draw(ctx, models.PoolWeekly)

			require.Error(t, err)
			tt.check(t, err)
			assert.True(t, IsDrawPreconditionError(err))
			assert.True(t, pool.YieldAccrued.Equal(dec(tt.yield)), "yield untouched")
			rng.AssertNotCalled(t, "Int63n", mock.Anything)
			m.prizes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			m.uow.AssertNotCalled(t, "Commit")
			m.assertExpectations(t)
		})
	}
}

func TestDrawService_Draw_UnknownPool(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)
	m.pools.On("GetByIDForUpdate", ctx, "hourly").Return(nil, nil)

	_, err := NewDrawService(m.factory, new(MockRandomSource), 0).Draw(ctx, "hourly")

	var target *NotFoundError
	require.True(t, errors.As(err, &target))
	assert.False(t, IsDrawPreconditionError(err))
	m.assertExpectations(t)
}

func TestDrawService_Draw_AdvancesScheduleOnlyWhenDue(t *testing.T) {
	tests := []struct {
		name      string
		nextDraw  time.Time
		expectNew bool
	}{
		{"due pool", time.Now().UTC().Add(-time.Minute), true},
		{"manual draw before schedule", time.Now().UTC().Add(48 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := newUoWMocks(ctx)
			m.expectCommit()

			pool := testPool(models.PoolDaily, 1)
			pool.YieldAccrued = dec("1")
			pool.NextDrawAt = tt.nextDraw

			rng := new(MockRandomSource)
			rng.On("Int63n", int64(10)).Return(int64(3), nil)

			m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).Return(pool, nil)
			m.deposits.On("GetByPool", ctx, models.PoolDaily, true).
				Return([]*models.Deposit{testDeposit(accountA, models.PoolDaily, "10", 10)}, nil)
			m.prizes.On("Create", ctx, mock.Anything).Return(nil)
			m.pools.On("Update", ctx, mock.Anything).Return(nil)

			_, err := NewDrawService(m.factory, rng, 0).Draw(ctx, models.PoolDaily)
			require.NoError(t, err)

			if tt.expectNew {
				assert.True(t, pool.NextDrawAt.After(time.Now().UTC()))
			} else {
				assert.Equal(t, tt.nextDraw, pool.NextDrawAt)
			}
			m.assertExpectations(t)
		})
	}
}

func TestDrawService_Draw_HistoryBounded(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)
	m.expectCommit()

	pool := testPool(models.PoolDaily, 1)
	pool.YieldAccrued = dec("1")
	for i := 0; i < 3; i++ {
		pool.PrizeHistory = append(pool.PrizeHistory, models.PrizeHistoryEntry{PrizeID: "old", Amount: dec("1"), Winner: accountC})
	}

	rng := new(MockRandomSource)
	rng.On("Int63n", int64(10)).Return(int64(0), nil)

	m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).Return(pool, nil)
	m.deposits.On("GetByPool", ctx, models.PoolDaily, true).
		Return([]*models.Deposit{testDeposit(accountA, models.PoolDaily, "10", 10)}, nil)
	m.prizes.On("Create", ctx, mock.Anything).Return(nil)
	m.pools.On("Update", ctx, mock.Anything).Return(nil)

	prize, err := NewDrawService(m.factory, rng, 3).Draw(ctx, models.PoolDaily)

	require.NoError(t, err)
	require.Len(t, pool.PrizeHistory, 3)
	assert.Equal(t, prize.ID.String(), pool.PrizeHistory[2].PrizeID)
	m.assertExpectations(t)
}

func TestDrawService_Draw_PrizeCreateFailureLeavesYield(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)

	pool := testPool(models.PoolDaily, 1)
	pool.YieldAccrued = dec("2.5")

	rng := new(MockRandomSource)
	rng.On("Int63n", int64(10)).Return(int64(0), nil)

	m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).Return(pool, nil)
	m.deposits.On("GetByPool", ctx, models.PoolDaily, true).
		Return([]*models.Deposit{testDeposit(accountA, models.PoolDaily, "10", 10)}, nil)
	m.prizes.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := NewDrawService(m.factory, rng, 0).Draw(ctx, models.PoolDaily)

	require.Error(t, err)
	assert.True(t, pool.YieldAccrued.Equal(dec("2.5")))
	assert.Empty(t, m.uow.Publisher().Events)
	m.pools.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
	m.assertExpectations(t)
}

func TestDrawService_Draw_ConcurrentDrawRejected(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks(ctx)

	entered := make(chan struct{})
	release := make(chan struct{})

	pool := testPool(models.PoolDaily, 1)
	m.pools.On("GetByIDForUpdate", ctx, models.PoolDaily).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(pool, nil).Once()

	svc := NewDrawService(m.factory, new(MockRandomSource), 0)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = svc.Draw(ctx, models.PoolDaily)
	}()

	<-entered
	assert.Equal(t, DrawStateDrawing, svc.State(models.PoolDaily))

	_, err := svc.Draw(ctx, models.PoolDaily)
	var inProgress *DrawInProgressError
	assert.True(t, errors.As(err, &inProgress))

	close(release)
	wg.Wait()

	var noYield *NoYieldError
	assert.True(t, errors.As(firstErr, &noYield))
	assert.Equal(t, DrawStateIdle, svc.State(models.PoolDaily))
}

func TestDrawService_SkipDraw(t *testing.T) {
	t.Run("due pool advances", func(t *testing.T) {
		ctx := context.Background()
		m := newUoWMocks(ctx)
		m.expectCommit()

		pool := testPool(models.PoolWeekly, 7)
		pool.NextDrawAt = time.Now().UTC().Add(-time.Hour)
		pool.YieldAccrued = dec("0.5")

		m.pools.On("GetByIDForUpdate", ctx, models.PoolWeekly).Return(pool, nil)
		m.pools.On("Update", ctx, pool).Return(nil)

		err := NewDrawService(m.factory, nil, 0).SkipDraw(ctx, models.PoolWeekly)

		require.NoError(t, err)
		assert.True(t, pool.NextDrawAt.After(time.Now().UTC()))
		assert.True(t, pool.YieldAccrued.Equal(dec("0.5")), "yield carries over")
		assert.Len(t, m.uow.Publisher().OfType(events.EventTypePoolUpdate), 1)
		m.assertExpectations(t)
	})

	t.Run("future pool untouched", func(t *testing.T) {
		ctx := context.Background()
		m := newUoWMocks(ctx)

		pool := testPool(models.PoolWeekly, 7)
		m.pools.On("GetByIDForUpdate", ctx, models.PoolWeekly).Return(pool, nil)

		err := NewDrawService(m.factory, nil, 0).SkipDraw(ctx, models.PoolWeekly)

		require.NoError(t, err)
		m.pools.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		m.uow.AssertNotCalled(t, "Commit")
		m.assertExpectations(t)
	})
}

func TestTicketUniverse_DepositAt(t *testing.T) {
	t.Parallel()

	a := testDeposit(accountA, models.PoolDaily, "1", 1)
	b := testDeposit(accountB, models.PoolDaily, "3", 3)
	c := testDeposit(accountC, models.PoolDaily, "2", 2)
	u := NewTicketUniverse([]*models.Deposit{a, b, c})

	expected := []*models.Deposit{a, b, b, b, c, c}
	require.Equal(t, int64(len(expected)), u.Total())
	for slot, want := range expected {
		got, err := u.DepositAt(int64(slot))
		require.NoError(t, err)
		assert.Same(t, want, got, "slot %d", slot)
	}

	_, err := u.DepositAt(6)
	assert.Error(t, err)
	_, err = u.DepositAt(-1)
	assert.Error(t, err)
}

func TestTicketUniverse_EmptyPick(t *testing.T) {
	t.Parallel()

	u := NewTicketUniverse(nil)
	_, err := u.Pick(NewSeededRandom(1))
	assert.ErrorIs(t, err, errEmptyUniverse)
}

// Winners must be drawn in proportion to tickets held. Three accounts holding
// 1:2:3 tickets are drawn 100,000 times with a fixed seed.
func TestTicketUniverse_PickIsTicketWeighted(t *testing.T) {
	t.Parallel()

	deposits := []*models.Deposit{
		testDeposit(accountA, models.PoolDaily, "100", 100),
		testDeposit(accountB, models.PoolDaily, "200", 200),
		testDeposit(accountC, models.PoolDaily, "300", 300),
	}
	u := NewTicketUniverse(deposits)
	rng := NewSeededRandom(20240601)

	const draws = 100_000
	wins := map[string]int{}
	for i := 0; i < draws; i++ {
		d, err := u.Pick(rng)
		require.NoError(t, err)
		wins[d.AccountID]++
	}

	chiSquared := 0.0
	for _, d := range deposits {
		share := float64(d.Tickets) / float64(u.Total())
		expected := share * draws
		diff := float64(wins[d.AccountID]) - expected
		chiSquared += diff * diff / expected

		observed := float64(wins[d.AccountID]) / draws
		assert.InDelta(t, share, observed, 0.01, "win frequency for %s", d.AccountID)
	}

	// 99.99th percentile of chi-squared with two degrees of freedom is ~18.4
	assert.Less(t, chiSquared, 20.0)
}

func TestRandomSources_RejectNonPositiveRange(t *testing.T) {
	t.Parallel()

	sources := map[string]RandomSource{
		"crypto": NewCryptoRandom(),
		"seeded": NewSeededRandom(7),
	}
	for name, src := range sources {
		_, err := src.Int63n(0)
		assert.Error(t, err, name)

		v, err := src.Int63n(5)
		require.NoError(t, err, name)
		assert.GreaterOrEqual(t, v, int64(0), name)
		assert.Less(t, v, int64(5), name)
	}
}

func TestSeededRandom_Reproducible(t *testing.T) {
	t.Parallel()

	a, b := NewSeededRandom(99), NewSeededRandom(99)
	for i := 0; i < 100; i++ {
		x, _ := a.Int63n(1_000_000)
		y, _ := b.Int63n(1_000_000)
		require.Equal(t, x, y)
	}
}
