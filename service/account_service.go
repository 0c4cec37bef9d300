package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"luckystake/models"

	"github.com/shopspring/decimal"
)

const (
	// DefaultLeaderboardLimit is the leaderboard size when none is requested
	DefaultLeaderboardLimit = 20
	// MaxLeaderboardLimit caps the leaderboard size
	MaxLeaderboardLimit = 100
)

var autoStrategyFrequencies = map[string]bool{
	"daily":   true,
	"weekly":  true,
	"monthly": true,
}

// accountService implements AccountService
type accountService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecordLogin creates the account if needed and stamps the login time
func (s *accountService) RecordLogin(ctx context.Context, accountID string) (*models.Account, error) {
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

	now := s.now()
	if err := uow.AccountRepository().TouchLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	account.LastLoginAt = &now

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// GetProfile returns the account with its activity totals
func (s *accountService) GetProfile(ctx context.Context, accountID string) (*models.AccountProfile, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, &NotFoundError{Resource: "account", ID: accountID}
	}

	deposits, err := uow.DepositRepository().GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits: %w", err)
	}
	prizes, err := uow.PrizeRepository().GetByWinner(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prizes: %w", err)
	}

	profile := &models.AccountProfile{
		Account:       *account,
		TotalPrizeWon: sumPrizes(prizes),
		PrizesWon:     len(prizes),
	}
	for _, d := range deposits {
		if d.IsActive() {
			profile.ActiveDeposits++
		}
	}
	return profile, nil
}

// UpdateSettings changes the privacy flag and auto strategy. Fields left nil
// keep their current value.
func (s *accountService) UpdateSettings(ctx context.Context, accountID string, settings models.AccountSettings) (*models.Account, error) {
	if err := validateAutoStrategy(settings.AutoStrategy); err != nil {
		return nil, err
	}

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, &NotFoundError{Resource: "account", ID: accountID}
	}

	if settings.PrivacyMode != nil {
		account.PrivacyMode = *settings.PrivacyMode
	}
	if settings.AutoStrategy != nil {
		account.AutoStrategy = settings.AutoStrategy
	}

	if err := uow.AccountRepository().UpdateSettings(ctx, accountID, account.PrivacyMode, account.AutoStrategy); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// Deposits returns the account's deposit history, newest first
func (s *accountService) Deposits(ctx context.Context, accountID string) (*models.DepositHistory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	deposits, err := uow.DepositRepository().GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits: %w", err)
	}

	history := &models.DepositHistory{
		Deposits:    deposits,
		TotalActive: decimal.Zero,
		Count:       len(deposits),
	}
	if history.Deposits == nil {
		history.Deposits = make([]*models.Deposit, 0)
	}
	for _, d := range deposits {
		if d.IsActive() {
			history.TotalActive = history.TotalActive.Add(d.Amount)
		}
	}
	return history, nil
}

// Prizes returns the prizes won by the account
func (s *accountService) Prizes(ctx context.Context, accountID string) (*models.PrizeHistory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prizes, err := uow.PrizeRepository().GetByWinner(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prizes: %w", err)
	}
	if prizes == nil {
		prizes = make([]*models.Prize, 0)
	}
	return &models.PrizeHistory{Prizes: prizes, TotalWon: sumPrizes(prizes)}, nil
}

// Leaderboard ranks public accounts by total deposited
func (s *accountService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts, err := uow.AccountRepository().GetLeaderboardCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	return BuildLeaderboard(accounts, limit), nil
}

// BuildLeaderboard ranks accounts by total deposited. Private accounts and
// accounts that never deposited are left out.
func BuildLeaderboard(accounts []*models.Account, limit int) []*models.LeaderboardEntry {
	eligible := make([]*models.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.PrivacyMode || !a.TotalDeposited.IsPositive() {
			continue
		}
		eligible = append(eligible, a)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if cmp := eligible[i].TotalDeposited.Cmp(eligible[j].TotalDeposited); cmp != 0 {
			return cmp > 0
		}
		return eligible[i].ID < eligible[j].ID
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	entries := make([]*models.LeaderboardEntry, 0, len(eligible))
	for i, a := range eligible {
		entries = append(entries, &models.LeaderboardEntry{
			Rank:            i + 1,
			MaskedAccountID: MaskAccountID(a.ID),
			TotalDeposited:  a.TotalDeposited,
			Tickets:         a.Tickets,
		})
	}
	return entries
}

// MaskAccountID shortens an identifier to its first six and last four characters
func MaskAccountID(id string) string {
	runes := []rune(id)
	if len(runes) <= 10 {
		return id
	}
	return string(runes[:6]) + "..." + string(runes[len(runes)-4:])
}

func validateAutoStrategy(strategy *models.AutoStrategy) error {
	if strategy == nil || !strategy.Enabled {
		return nil
	}
	if strategy.PoolID == "" {
		return &ValidationError{Field: "autoStrategy.poolType", Message: "is required when enabled"}
	}
	if !strategy.DepositAmount.IsPositive() {
		return &ValidationError{Field: "autoStrategy.depositAmount", Message: "must be a positive number"}
	}
	if !autoStrategyFrequencies[strategy.Frequency] {
		return &ValidationError{Field: "autoStrategy.frequency", Message: fmt.Sprintf("unsupported frequency %q", strategy.Frequency)}
	}
	return nil
}

func sumPrizes(prizes []*models.Prize) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prizes {
		total = total.Add(p.Amount)
	}
	return total
}
