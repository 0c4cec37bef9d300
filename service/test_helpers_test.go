package service

import (
	"context"
	"testing"
	"time"

	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

const (
	accountA = "GAXKQ7TQ2WQ4JX6E5HM6C3R7T6RBSD2K5ZMQDC6BQPBRJBNJBU4BYLAA"
	accountB = "GBZH7S5RKUBAOGWJ3QVW4HM3B5TLFU3ILQW7YIHXGXH6Q6NVV7BJPXQK"
	accountC = "GCFONE23AB7Y6C5YZOMKUKGETPIAJA4QOYLS5VNS4JHBGKRZCPYHDLW7"
)

// uowMocks bundles a mocked unit of work with its repositories
type uowMocks struct {
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	accounts  *MockAccountRepository
	deposits  *MockDepositRepository
	pools     *MockPoolRepository
	prizes    *MockPrizeRepository
	yieldRuns *MockYieldRunRepository
}

func newUoWMocks(ctx context.Context) *uowMocks {
	m := &uowMocks{
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		accounts:  new(MockAccountRepository),
		deposits:  new(MockDepositRepository),
		pools:     new(MockPoolRepository),
		prizes:    new(MockPrizeRepository),
		yieldRuns: new(MockYieldRunRepository),
	}
	m.uow.SetRepositories(m.accounts, m.deposits, m.pools, m.prizes, m.yieldRuns)

	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
	return m
}

func (m *uowMocks) expectCommit() {
	m.uow.On("Commit").Return(nil)
}

func (m *uowMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.accounts.AssertExpectations(t)
	m.deposits.AssertExpectations(t)
	m.pools.AssertExpectations(t)
	m.prizes.AssertExpectations(t)
	m.yieldRuns.AssertExpectations(t)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEq(expected string) interface{} {
	want := dec(expected)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}

func testPool(id string, intervalDays int) *models.Pool {
	return &models.Pool{
		ID:             id,
		Name:           id,
		IntervalDays:   intervalDays,
		MinDeposit:     decimal.NewFromInt(1),
		Currency:       "USDC",
		TotalDeposited: decimal.Zero,
		YieldAccrued:   decimal.Zero,
		NextDrawAt:     time.Now().UTC().Add(24 * time.Hour),
	}
}

func testDeposit(accountID, poolID string, amount string, tickets int64) *models.Deposit {
	return &models.Deposit{
		ID:          uuid.New(),
		AccountID:   accountID,
		PoolID:      poolID,
		Amount:      dec(amount),
		TxHash:      "tx-" + uuid.NewString(),
		DepositedAt: time.Now().UTC(),
		Tickets:     tickets,
	}
}
