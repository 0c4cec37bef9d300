package service

import (
	"context"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByID retrieves an account by its public key
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// Create inserts a new account with zeroed aggregates. An account that
	// already exists is returned unchanged.
	Create(ctx context.Context, id string) (*models.Account, error)

	// ApplyDeposit adds a deposit to the account aggregates
	ApplyDeposit(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error

	// ApplyWithdrawal records a withdrawal, flooring the ticket aggregate at zero
	ApplyWithdrawal(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error

	// UpdateSettings stores the privacy flag and auto strategy
	UpdateSettings(ctx context.Context, id string, privacyMode bool, strategy *models.AutoStrategy) error

	// TouchLogin stamps the last successful authentication
	TouchLogin(ctx context.Context, id string, at time.Time) error

	// GetLeaderboardCandidates returns public accounts with a positive deposit total
	GetLeaderboardCandidates(ctx context.Context) ([]*models.Account, error)
}

// DepositRepository defines the interface for deposit data access
type DepositRepository interface {
	// Create inserts a new deposit
	Create(ctx context.Context, deposit *models.Deposit) error

	// GetByID retrieves a deposit by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error)

	// GetByIDForUpdate retrieves a deposit and locks it for the rest of the unit of work
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error)

	// MarkWithdrawn sets the withdrawal timestamp of an active deposit
	MarkWithdrawn(ctx context.Context, id uuid.UUID, at time.Time) error

	// GetByAccount returns an account's deposits, newest first
	GetByAccount(ctx context.Context, accountID string) ([]*models.Deposit, error)

	// GetByPool returns a pool's deposits in creation order
	GetByPool(ctx context.Context, poolID string, activeOnly bool) ([]*models.Deposit, error)

	// CountActiveParticipants returns the number of distinct accounts with an active deposit in the pool
	CountActiveParticipants(ctx context.Context, poolID string) (int, error)
}

// PoolRepository defines the interface for pool data access
type PoolRepository interface {
	// GetAll returns every pool ordered by draw interval
	GetAll(ctx context.Context) ([]*models.Pool, error)

	// GetByID retrieves a pool by ID
	GetByID(ctx context.Context, id string) (*models.Pool, error)

	// GetByIDForUpdate retrieves a pool and locks it for the rest of the unit of work
	GetByIDForUpdate(ctx context.Context, id string) (*models.Pool, error)

	// Update persists a pool's mutable state
	Update(ctx context.Context, pool *models.Pool) error

	// Upsert inserts a pool definition or refreshes its static attributes
	Upsert(ctx context.Context, pool *models.Pool) error

	// GetDuePools returns pools whose scheduled draw time is at or before now
	GetDuePools(ctx context.Context, now time.Time) ([]*models.Pool, error)

	// GetNextDrawTime returns the earliest scheduled draw time, or nil if there are no pools
	GetNextDrawTime(ctx context.Context) (*time.Time, error)
}

// PrizeRepository defines the interface for prize data access
type PrizeRepository interface {
	// Create inserts a new prize
	Create(ctx context.Context, prize *models.Prize) error

	// GetByID retrieves a prize by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prize, error)

	// GetRecent returns the most recent prizes across all pools
	GetRecent(ctx context.Context, limit int) ([]*models.Prize, error)

	// GetByWinner returns prizes won by an account, newest first
	GetByWinner(ctx context.Context, accountID string) ([]*models.Prize, error)

	// SetTxHash attaches the payout reference to an unsettled prize
	SetTxHash(ctx context.Context, id uuid.UUID, txHash string) error
}

// YieldRunRepository defines the interface for yield accrual bookkeeping
type YieldRunRepository interface {
	// Create records a completed accrual run
	Create(ctx context.Context, run *models.YieldRun) error

	// GetLatest returns the most recent run, or nil if none exist
	GetLatest(ctx context.Context) (*models.YieldRun, error)
}

// EventPublisher collects events raised inside a unit of work
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork scopes repository access to one atomic transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	DepositRepository() DepositRepository
	PoolRepository() PoolRepository
	PrizeRepository() PrizeRepository
	YieldRunRepository() YieldRunRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// LedgerService records deposits and withdrawals
type LedgerService interface {
	// GetOrCreateAccount returns the account, inserting it if absent
	GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error)

	// Deposit records a new deposit and updates pool and account aggregates
	Deposit(ctx context.Context, accountID, poolID string, amount decimal.Decimal, txHash string) (*models.Deposit, error)

	// Withdraw removes an active deposit owned by accountID from its pool
	Withdraw(ctx context.Context, depositID, accountID string) (*models.Deposit, error)
}

// PoolService exposes pool state and prize records
type PoolService interface {
	// SeedPools inserts the pool catalog, keeping existing balances
	SeedPools(ctx context.Context, pools []*models.Pool) error

	// ListPools returns every pool
	ListPools(ctx context.Context) ([]*models.Pool, error)

	// GetPool returns a single pool
	GetPool(ctx context.Context, poolID string) (*models.Pool, error)

	// AccountPosition returns an account's stake in a pool
	AccountPosition(ctx context.Context, accountID, poolID string) (*models.Position, error)

	// RecentPrizes returns the latest prizes across all pools
	RecentPrizes(ctx context.Context, limit int) ([]*models.Prize, error)

	// Snapshot returns pools and recent prizes for a newly connected observer
	Snapshot(ctx context.Context, prizeLimit int) (*models.Snapshot, error)

	// SettlePrize attaches the payout transaction reference to a prize
	SettlePrize(ctx context.Context, prizeID, txHash string) (*models.Prize, error)
}

// AccountService exposes account profiles, settings and the leaderboard
type AccountService interface {
	// RecordLogin creates the account if needed and stamps the login time
	RecordLogin(ctx context.Context, accountID string) (*models.Account, error)

	// GetProfile returns the account with activity totals
	GetProfile(ctx context.Context, accountID string) (*models.AccountProfile, error)

	// UpdateSettings changes the privacy flag and auto strategy
	UpdateSettings(ctx context.Context, accountID string, settings models.AccountSettings) (*models.Account, error)

	// Deposits returns the account's deposit history
	Deposits(ctx context.Context, accountID string) (*models.DepositHistory, error)

	// Prizes returns the prizes won by the account
	Prizes(ctx context.Context, accountID string) (*models.PrizeHistory, error)

	// Leaderboard ranks public accounts by total deposited
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

// YieldService grows pool prizes from their deposited balances
type YieldService interface {
	// AccrueYield applies yearFraction of the annual rate to every pool
	AccrueYield(ctx context.Context, yearFraction decimal.Decimal) ([]models.PoolYield, error)

	// AccrueSinceLastRun accrues for the time elapsed since the previous run
	AccrueSinceLastRun(ctx context.Context, now time.Time) ([]models.PoolYield, error)
}

// DrawService selects pool winners
type DrawService interface {
	// Draw picks a ticket-weighted winner and awards the pool's accrued yield
	Draw(ctx context.Context, poolID string) (*models.Prize, error)

	// SkipDraw moves a due pool's schedule forward without drawing
	SkipDraw(ctx context.Context, poolID string) error

	// State reports the draw state of a pool
	State(poolID string) DrawState
}
