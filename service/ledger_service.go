package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ledgerService implements LedgerService
type ledgerService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateAccount returns the account, inserting it if absent
func (s *ledgerService) GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	account, err := getOrCreateAccount(ctx, uow, accountID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// Deposit records a new deposit. Input is fully validated before anything is
// written, and all aggregate updates happen under the pool's lock.
func (s *ledgerService) Deposit(ctx context.Context, accountID, poolID string, amount decimal.Decimal, txHash string) (*models.Deposit, error) {
	// Validate inputs
	accountID = strings.TrimSpace(accountID)
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be a positive number"}
	}
	if amount.GreaterThan(MaxAmount) {
		return nil, &ValidationError{Field: "amount", Message: fmt.Sprintf("maximum deposit is %s", MaxAmount.String())}
	}
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, &ValidationError{Field: "txHash", Message: "is required"}
	}
	if strings.TrimSpace(poolID) == "" {
		return nil, &ValidationError{Field: "poolType", Message: "is required"}
	}

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// Lock the pool so totals and participant counts stay consistent
	pool, err := uow.PoolRepository().GetByIDForUpdate(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pool: %w", err)
	}
	if pool == nil {
		return nil, &ValidationError{Field: "poolType", Message: fmt.Sprintf("unknown pool %q", poolID)}
	}
	if amount.LessThan(pool.MinDeposit) {
		return nil, &ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("minimum deposit is %s %s", pool.MinDeposit.String(), pool.Currency),
		}
	}
	if !TicketsFit(pool.TotalDeposited.Add(amount), pool) {
		return nil, &ValidationError{Field: "amount", Message: fmt.Sprintf("deposit exceeds the capacity of the %s pool", pool.ID)}
	}

	account, err := getOrCreateAccount(ctx, uow, accountID)
	if err != nil {
		return nil, err
	}
	tickets := TicketsFor(amount, pool)
	if account.TotalDeposited.Add(amount).GreaterThan(MaxAmount) || account.Tickets > math.MaxInt64-tickets {
		return nil, &ValidationError{Field: "amount", Message: "deposit exceeds the account's capacity"}
	}

	// Record the deposit
	deposit := &models.Deposit{
		ID:          uuid.New(),
		AccountID:   accountID,
		PoolID:      pool.ID,
		Amount:      amount,
		TxHash:      txHash,
		DepositedAt: s.now(),
		Tickets:     tickets,
	}
	if err := uow.DepositRepository().Create(ctx, deposit); err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	// Update account and pool aggregates
	if err := uow.AccountRepository().ApplyDeposit(ctx, deposit.AccountID, amount, deposit.Tickets); err != nil {
		return nil, fmt.Errorf("failed to update account totals: %w", err)
	}

	pool.TotalDeposited = pool.TotalDeposited.Add(amount)
	if err := s.refreshPool(ctx, uow, pool); err != nil {
		return nil, err
	}

	// Publish events
	uow.EventBus().Publish(events.DepositRecordedEvent{Deposit: deposit})
	uow.EventBus().Publish(events.PoolUpdateEvent{PoolID: pool.ID, Pool: pool})

	// Commit the transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deposit, nil
}

// Withdraw removes an active deposit from its pool. Settlement is immediate.
func (s *ledgerService) Withdraw(ctx context.Context, depositID, accountID string) (*models.Deposit, error) {
	accountID = strings.TrimSpace(accountID)
	id, err := uuid.Parse(depositID)
	if err != nil {
		return nil, &NotFoundError{Resource: "deposit", ID: depositID}
	}

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// Get the deposit and check ownership
	deposit, err := uow.DepositRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	if deposit == nil {
		return nil, &NotFoundError{Resource: "deposit", ID: depositID}
	}
	if deposit.AccountID != accountID {
		return nil, &ForbiddenError{Resource: "deposit", ID: depositID, AccountID: accountID}
	}
	if !deposit.IsActive() {
		return nil, &AlreadyWithdrawnError{DepositID: depositID, WithdrawnAt: *deposit.WithdrawnAt}
	}

	pool, err := uow.PoolRepository().GetByIDForUpdate(ctx, deposit.PoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pool: %w", err)
	}
	if pool == nil {
		return nil, &NotFoundError{Resource: "pool", ID: deposit.PoolID}
	}

	// Close the deposit
	now := s.now()
	if err := uow.DepositRepository().MarkWithdrawn(ctx, deposit.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark deposit withdrawn: %w", err)
	}
	deposit.WithdrawnAt = &now

	// Release the principal from account and pool aggregates
	if err := uow.AccountRepository().ApplyWithdrawal(ctx, deposit.AccountID, deposit.Amount, deposit.Tickets); err != nil {
		return nil, fmt.Errorf("failed to update account totals: %w", err)
	}

	pool.TotalDeposited = decimal.Max(decimal.Zero, pool.TotalDeposited.Sub(deposit.Amount))
	if err := s.refreshPool(ctx, uow, pool); err != nil {
		return nil, err
	}

	// Publish events
	uow.EventBus().Publish(events.DepositWithdrawnEvent{Deposit: deposit})
	uow.EventBus().Publish(events.PoolUpdateEvent{PoolID: pool.ID, Pool: pool})

	// Commit the transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deposit, nil
}

// refreshPool recounts participants and persists the pool
func (s *ledgerService) refreshPool(ctx context.Context, uow UnitOfWork, pool *models.Pool) error {
	participants, err := uow.DepositRepository().CountActiveParticipants(ctx, pool.ID)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	pool.Participants = participants

	if err := uow.PoolRepository().Update(ctx, pool); err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	return nil
}
