package service

import (
	"context"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) ApplyDeposit(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error {
	args := m.Called(ctx, id, amount, tickets)
	return args.Error(0)
}

func (m *MockAccountRepository) ApplyWithdrawal(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error {
	args := m.Called(ctx, id, amount, tickets)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateSettings(ctx context.Context, id string, privacyMode bool, strategy *models.AutoStrategy) error {
	args := m.Called(ctx, id, privacyMode, strategy)
	return args.Error(0)
}

func (m *MockAccountRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockAccountRepository) GetLeaderboardCandidates(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

// MockDepositRepository is a mock implementation of DepositRepository
type MockDepositRepository struct {
	mock.Mock
}

func (m *MockDepositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *MockDepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) MarkWithdrawn(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDepositRepository) GetByAccount(ctx context.Context, accountID string) ([]*models.Deposit, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) GetByPool(ctx context.Context, poolID string, activeOnly bool) ([]*models.Deposit, error) {
	args := m.Called(ctx, poolID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) CountActiveParticipants(ctx context.Context, poolID string) (int, error) {
	args := m.Called(ctx, poolID)
	return args.Int(0), args.Error(1)
}

// MockPoolRepository is a mock implementation of PoolRepository
type MockPoolRepository struct {
	mock.Mock
}

func (m *MockPoolRepository) GetAll(ctx context.Context) ([]*models.Pool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Pool), args.Error(1)
}

func (m *MockPoolRepository) GetByID(ctx context.Context, id string) (*models.Pool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *MockPoolRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Pool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *MockPoolRepository) Update(ctx context.Context, pool *models.Pool) error {
	args := m.Called(ctx, pool)
	return args.Error(0)
}

func (m *MockPoolRepository) Upsert(ctx context.Context, pool *models.Pool) error {
	args := m.Called(ctx, pool)
	return args.Error(0)
}

func (m *MockPoolRepository) GetDuePools(ctx context.Context, now time.Time) ([]*models.Pool, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Pool), args.Error(1)
}

func (m *MockPoolRepository) GetNextDrawTime(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

// MockPrizeRepository is a mock implementation of PrizeRepository
type MockPrizeRepository struct {
	mock.Mock
}

func (m *MockPrizeRepository) Create(ctx context.Context, prize *models.Prize) error {
	args := m.Called(ctx, prize)
	return args.Error(0)
}

func (m *MockPrizeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prize), args.Error(1)
}

func (m *MockPrizeRepository) GetRecent(ctx context.Context, limit int) ([]*models.Prize, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prize), args.Error(1)
}

func (m *MockPrizeRepository) GetByWinner(ctx context.Context, accountID string) ([]*models.Prize, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prize), args.Error(1)
}

func (m *MockPrizeRepository) SetTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	args := m.Called(ctx, id, txHash)
	return args.Error(0)
}

// MockYieldRunRepository is a mock implementation of YieldRunRepository
type MockYieldRunRepository struct {
	mock.Mock
}

func (m *MockYieldRunRepository) Create(ctx context.Context, run *models.YieldRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockYieldRunRepository) GetLatest(ctx context.Context) (*models.YieldRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.YieldRun), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	Events []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Events = append(m.Events, event)
}

// OfType returns the recorded events of one type
func (m *MockEventPublisher) OfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range m.Events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	accountRepo  AccountRepository
	depositRepo  DepositRepository
	poolRepo     PoolRepository
	prizeRepo    PrizeRepository
	yieldRunRepo YieldRunRepository
	publisher    *MockEventPublisher
}

// SetRepositories wires the repositories returned by the unit of work
func (m *MockUnitOfWork) SetRepositories(accountRepo AccountRepository, depositRepo DepositRepository, poolRepo PoolRepository, prizeRepo PrizeRepository, yieldRunRepo YieldRunRepository) {
	m.accountRepo = accountRepo
	m.depositRepo = depositRepo
	m.poolRepo = poolRepo
	m.prizeRepo = prizeRepo
	m.yieldRunRepo = yieldRunRepo
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository   { return m.accountRepo }
func (m *MockUnitOfWork) DepositRepository() DepositRepository   { return m.depositRepo }
func (m *MockUnitOfWork) PoolRepository() PoolRepository         { return m.poolRepo }
func (m *MockUnitOfWork) PrizeRepository() PrizeRepository       { return m.prizeRepo }
func (m *MockUnitOfWork) YieldRunRepository() YieldRunRepository { return m.yieldRunRepo }

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.Publisher()
}

// Publisher returns the recording event publisher of this unit of work
func (m *MockUnitOfWork) Publisher() *MockEventPublisher {
	if m.publisher == nil {
		m.publisher = &MockEventPublisher{}
	}
	return m.publisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockRandomSource returns scripted values
type MockRandomSource struct {
	mock.Mock
}

func (m *MockRandomSource) Int63n(n int64) (int64, error) {
	args := m.Called(n)
	return args.Get(0).(int64), args.Error(1)
}
