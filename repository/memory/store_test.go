package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"luckystake/events"
	"luckystake/models"
	"luckystake/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPool(t *testing.T, store *Store, id string, interval int) {
	t.Helper()
	ctx := context.Background()
	uow := store.NewUnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.PoolRepository().Upsert(ctx, &models.Pool{
		ID:             id,
		Name:           id,
		IntervalDays:   interval,
		MinDeposit:     decimal.NewFromInt(1),
		Currency:       "USDC",
		TotalDeposited: decimal.Zero,
		YieldAccrued:   decimal.Zero,
		NextDrawAt:     time.Now().UTC().Add(time.Hour),
	}))
	require.NoError(t, uow.Commit())
}

func TestStore_RollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedPool(t, store, models.PoolDaily, 1)
	factory := store.NewUnitOfWorkFactory()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.AccountRepository().Create(ctx, "GACCOUNT")
	require.NoError(t, err)
	pool, err := uow.PoolRepository().GetByIDForUpdate(ctx, models.PoolDaily)
	require.NoError(t, err)
	pool.TotalDeposited = decimal.NewFromInt(50)
	require.NoError(t, uow.PoolRepository().Update(ctx, pool))
	require.NoError(t, uow.Rollback())

	check := factory.Create()
	require.NoError(t, check.Begin(ctx))
	defer check.Rollback()

	account, err := check.AccountRepository().GetByID(ctx, "GACCOUNT")
	require.NoError(t, err)
	assert.Nil(t, account)

	pool, err = check.PoolRepository().GetByID(ctx, models.PoolDaily)
	require.NoError(t, err)
	assert.True(t, pool.TotalDeposited.IsZero())
}

func TestStore_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedPool(t, store, models.PoolWeekly, 7)

	uow := store.NewUnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	pool, err := uow.PoolRepository().GetByID(ctx, models.PoolWeekly)
	require.NoError(t, err)
	pool.YieldAccrued = decimal.NewFromInt(99)

	again, err := uow.PoolRepository().GetByID(ctx, models.PoolWeekly)
	require.NoError(t, err)
	assert.True(t, again.YieldAccrued.IsZero())
}

func TestStore_CommitFlushesEvents(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeAccountCreated, func(ctx context.Context, e events.Event) {
		received <- e
	})

	store := NewStore(bus)
	uow := store.NewUnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	uow.EventBus().Publish(events.AccountCreatedEvent{AccountID: "GACCOUNT"})

	select {
	case <-received:
		t.Fatal("event delivered before commit")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, uow.Commit())

	select {
	case e := <-received:
		assert.Equal(t, "GACCOUNT", e.(events.AccountCreatedEvent).AccountID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered after commit")
	}
}

func TestStore_BeginWaitsForLockAndHonorsContext(t *testing.T) {
	store := NewStore(nil)
	factory := store.NewUnitOfWorkFactory()

	holder := factory.Create()
	require.NoError(t, holder.Begin(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := factory.Create().Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		waiter := factory.Create()
		assert.NoError(t, waiter.Begin(context.Background()))
		assert.NoError(t, waiter.Rollback())
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, holder.Rollback())
	wg.Wait()
}

func TestStore_DepositOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedPool(t, store, models.PoolDaily, 1)

	uow := store.NewUnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	_, err := uow.AccountRepository().Create(ctx, "GACCOUNT")
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, uow.DepositRepository().Create(ctx, &models.Deposit{
			ID:          ids[i],
			AccountID:   "GACCOUNT",
			PoolID:      models.PoolDaily,
			Amount:      decimal.NewFromInt(int64(i + 1)),
			DepositedAt: base.Add(time.Duration(i) * time.Minute),
			Tickets:     int64(i + 1),
		}))
	}
	require.NoError(t, uow.DepositRepository().MarkWithdrawn(ctx, ids[1], base.Add(time.Hour)))

	byPool, err := uow.DepositRepository().GetByPool(ctx, models.PoolDaily, false)
	require.NoError(t, err)
	require.Len(t, byPool, 3)
	assert.Equal(t, ids[0], byPool[0].ID)
	assert.Equal(t, ids[2], byPool[2].ID)

	active, err := uow.DepositRepository().GetByPool(ctx, models.PoolDaily, true)
	require.NoError(t, err)
	require.Len(t, active, 2)

	byAccount, err := uow.DepositRepository().GetByAccount(ctx, "GACCOUNT")
	require.NoError(t, err)
	assert.Equal(t, ids[2], byAccount[0].ID)

	assert.Error(t, uow.DepositRepository().MarkWithdrawn(ctx, ids[1], base), "second withdrawal rejected")

	count, err := uow.DepositRepository().CountActiveParticipants(ctx, models.PoolDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_DepositRequiresKnownAccountAndPool(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedPool(t, store, models.PoolDaily, 1)

	uow := store.NewUnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	err := uow.DepositRepository().Create(ctx, &models.Deposit{ID: uuid.New(), AccountID: "GNOBODY", PoolID: models.PoolDaily})
	assert.Error(t, err)
}

func TestStore_UnstartedUnitOfWorkPanics(t *testing.T) {
	uow := NewStore(nil).NewUnitOfWorkFactory().Create()
	assert.Panics(t, func() { uow.PoolRepository() })
}

func TestStore_IndexesFollowCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedPool(t, store, models.PoolDaily, 1)
	seedPool(t, store, models.PoolWeekly, 7)
	factory := store.NewUnitOfWorkFactory()

	run := func(fn func(uow service.UnitOfWork)) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		fn(uow)
		require.NoError(t, uow.Commit())
	}
	count := func(poolID string) int {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		n, err := uow.DepositRepository().CountActiveParticipants(ctx, poolID)
		require.NoError(t, err)
		return n
	}
	deposit := func(accountID, poolID string) *models.Deposit {
		return &models.Deposit{
			ID:          uuid.New(),
			AccountID:   accountID,
			PoolID:      poolID,
			Amount:      decimal.NewFromInt(10),
			DepositedAt: time.Now().UTC(),
			Tickets:     10,
		}
	}

	a1, a2 := deposit("GA", models.PoolDaily), deposit("GA", models.PoolDaily)
	b1 := deposit("GB", models.PoolDaily)
	w1 := deposit("GA", models.PoolWeekly)

	run(func(uow service.UnitOfWork) {
		for _, id := range []string{"GA", "GB"} {
			_, err := uow.AccountRepository().Create(ctx, id)
			require.NoError(t, err)
		}
		require.NoError(t, uow.DepositRepository().Create(ctx, a1))
		require.NoError(t, uow.DepositRepository().Create(ctx, w1))
	})
	run(func(uow service.UnitOfWork) {
		require.NoError(t, uow.DepositRepository().Create(ctx, a2))
		require.NoError(t, uow.DepositRepository().Create(ctx, b1))
	})
	assert.Equal(t, 2, count(models.PoolDaily))
	assert.Equal(t, 1, count(models.PoolWeekly))

	// One of two deposits withdrawn keeps the account counted
	run(func(uow service.UnitOfWork) {
		require.NoError(t, uow.DepositRepository().MarkWithdrawn(ctx, a1.ID, time.Now().UTC()))
	})
	assert.Equal(t, 2, count(models.PoolDaily))

	// A rolled back withdrawal changes nothing
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.DepositRepository().MarkWithdrawn(ctx, b1.ID, time.Now().UTC()))
	n, err := uow.DepositRepository().CountActiveParticipants(ctx, models.PoolDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "uncommitted withdrawal is visible inside the unit of work")
	require.NoError(t, uow.Rollback())
	assert.Equal(t, 2, count(models.PoolDaily))

	run(func(uow service.UnitOfWork) {
		require.NoError(t, uow.DepositRepository().MarkWithdrawn(ctx, a2.ID, time.Now().UTC()))
		require.NoError(t, uow.DepositRepository().MarkWithdrawn(ctx, b1.ID, time.Now().UTC()))
	})
	assert.Equal(t, 0, count(models.PoolDaily))
	assert.Equal(t, 1, count(models.PoolWeekly))

	check := factory.Create()
	require.NoError(t, check.Begin(ctx))
	defer check.Rollback()

	all, err := check.DepositRepository().GetByPool(ctx, models.PoolDaily, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{a1.ID, a2.ID, b1.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	active, err := check.DepositRepository().GetByPool(ctx, models.PoolDaily, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	byAccount, err := check.DepositRepository().GetByAccount(ctx, "GA")
	require.NoError(t, err)
	assert.Len(t, byAccount, 3)
}

func TestStore_RecentPrizesMergeCommittedAndPending(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	factory := store.NewUnitOfWorkFactory()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	prize := func(offset time.Duration) *models.Prize {
		return &models.Prize{
			ID:       uuid.New(),
			WinnerID: "GA",
			Amount:   decimal.NewFromInt(1),
			PoolID:   models.PoolDaily,
			DrawnAt:  base.Add(offset),
		}
	}
	first, second, late := prize(0), prize(2*time.Hour), prize(time.Hour)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.PrizeRepository().Create(ctx, first))
	require.NoError(t, uow.PrizeRepository().Create(ctx, second))
	require.NoError(t, uow.Commit())

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.PrizeRepository().Create(ctx, late))
	require.NoError(t, uow.PrizeRepository().SetTxHash(ctx, second.ID, "hash"))

	recent, err := uow.PrizeRepository().GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.True(t, recent[0].IsSettled())
	assert.Equal(t, late.ID, recent[1].ID)
	require.NoError(t, uow.Commit())

	check := factory.Create()
	require.NoError(t, check.Begin(ctx))
	defer check.Rollback()

	won, err := check.PrizeRepository().GetByWinner(ctx, "GA")
	require.NoError(t, err)
	require.Len(t, won, 3)
	assert.Equal(t, []uuid.UUID{second.ID, late.ID, first.ID}, []uuid.UUID{won[0].ID, won[1].ID, won[2].ID})
	assert.Error(t, check.PrizeRepository().SetTxHash(ctx, second.ID, "again"))
}
