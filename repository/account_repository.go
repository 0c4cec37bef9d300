package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"luckystake/database"
	"luckystake/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

const accountColumns = `
	id, joined_at, total_deposited, total_withdrawn, tickets,
	privacy_mode, auto_strategy, last_login_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	var strategyJSON []byte
	err := row.Scan(
		&account.ID,
		&account.JoinedAt,
		&account.TotalDeposited,
		&account.TotalWithdrawn,
		&account.Tickets,
		&account.PrivacyMode,
		&strategyJSON,
		&account.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	if len(strategyJSON) > 0 {
		var strategy models.AutoStrategy
		if err := json.Unmarshal(strategyJSON, &strategy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal auto strategy: %w", err)
		}
		account.AutoStrategy = &strategy
	}
	return &account, nil
}

// GetByID retrieves an account by its public key
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return account, nil
}

// Create inserts an account with zeroed totals. When a concurrent
// transaction inserted the same id first, the existing row is returned.
func (r *AccountRepository) Create(ctx context.Context, id string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race; the winner's row is visible once it committed
		account, err = r.GetByID(ctx, id)
		if err == nil && account == nil {
			err = fmt.Errorf("account vanished after conflict")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", id, err)
	}
	return account, nil
}

// ApplyDeposit adds a deposit to the account's running totals
func (r *AccountRepository) ApplyDeposit(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error {
	query := `
		UPDATE accounts
		SET total_deposited = total_deposited + $1,
		    tickets = tickets + $2
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, amount, tickets, id)
	if err != nil {
		return fmt.Errorf("failed to apply deposit to account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// ApplyWithdrawal records a withdrawal. Tickets never drop below zero.
func (r *AccountRepository) ApplyWithdrawal(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error {
	query := `
		UPDATE accounts
		SET total_withdrawn = total_withdrawn + $1,
		    tickets = GREATEST(tickets - $2, 0)
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, amount, tickets, id)
	if err != nil {
		return fmt.Errorf("failed to apply withdrawal to account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// UpdateSettings stores the privacy flag and auto strategy
func (r *AccountRepository) UpdateSettings(ctx context.Context, id string, privacyMode bool, strategy *models.AutoStrategy) error {
	var strategyJSON []byte
	if strategy != nil {
		var err error
		strategyJSON, err = json.Marshal(strategy)
		if err != nil {
			return fmt.Errorf("failed to marshal auto strategy: %w", err)
		}
	}

	query := `
		UPDATE accounts
		SET privacy_mode = $1, auto_strategy = $2
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, privacyMode, strategyJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update settings for account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// TouchLogin stamps the account's last login time
func (r *AccountRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.q.Exec(ctx, `UPDATE accounts SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to record login for account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// GetLeaderboardCandidates returns public accounts that have deposited
func (r *AccountRepository) GetLeaderboardCandidates(ctx context.Context) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE privacy_mode = FALSE AND total_deposited > 0
		ORDER BY total_deposited DESC, id ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}
