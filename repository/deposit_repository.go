package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luckystake/database"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DepositRepository implements the DepositRepository interface
type DepositRepository struct {
	q queryable
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *database.DB) *DepositRepository {
	return &DepositRepository{q: db.Pool}
}

// newDepositRepositoryWithTx creates a new deposit repository with a transaction
func newDepositRepositoryWithTx(tx queryable) *DepositRepository {
	return &DepositRepository{q: tx}
}

const depositColumns = `id, account_id, pool_id, amount, tx_hash, deposited_at, withdrawn_at, tickets`

func scanDeposit(row pgx.Row) (*models.Deposit, error) {
	var d models.Deposit
	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.PoolID,
		&d.Amount,
		&d.TxHash,
		&d.DepositedAt,
		&d.WithdrawnAt,
		&d.Tickets,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepositRepository) queryDeposits(ctx context.Context, query string, args ...any) ([]*models.Deposit, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []*models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deposits: %w", err)
	}
	return deposits, nil
}

// Create inserts a new deposit
func (r *DepositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	query := `
		INSERT INTO deposits (id, account_id, pool_id, amount, tx_hash, deposited_at, tickets)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		deposit.ID,
		deposit.AccountID,
		deposit.PoolID,
		deposit.Amount,
		deposit.TxHash,
		deposit.DepositedAt,
		deposit.Tickets,
	)
	if err != nil {
		return fmt.Errorf("failed to create deposit for account %s: %w", deposit.AccountID, err)
	}
	return nil
}

// GetByID retrieves a deposit by ID
func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`

	d, err := scanDeposit(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s: %w", id, err)
	}
	return d, nil
}

// GetByIDForUpdate retrieves a deposit and locks its row until the
// transaction ends
func (r *DepositRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR UPDATE`

	d, err := scanDeposit(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock deposit %s: %w", id, err)
	}
	return d, nil
}

// MarkWithdrawn closes an active deposit
func (r *DepositRepository) MarkWithdrawn(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE deposits
		SET withdrawn_at = $1
		WHERE id = $2 AND withdrawn_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to withdraw deposit %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("deposit %s not found or already withdrawn", id)
	}
	return nil
}

// GetByAccount returns an account's deposits, newest first
func (r *DepositRepository) GetByAccount(ctx context.Context, accountID string) ([]*models.Deposit, error) {
	query := `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE account_id = $1
		ORDER BY deposited_at DESC, seq DESC
	`

	deposits, err := r.queryDeposits(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits for account %s: %w", accountID, err)
	}
	return deposits, nil
}

// GetByPool returns a pool's deposits in the order they were made
func (r *DepositRepository) GetByPool(ctx context.Context, poolID string, activeOnly bool) ([]*models.Deposit, error) {
	query := `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE pool_id = $1 AND (NOT $2::boolean OR withdrawn_at IS NULL)
		ORDER BY seq ASC
	`

	deposits, err := r.queryDeposits(ctx, query, poolID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits for pool %s: %w", poolID, err)
	}
	return deposits, nil
}

// CountActiveParticipants counts distinct accounts with an active deposit in the pool
func (r *DepositRepository) CountActiveParticipants(ctx context.Context, poolID string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT account_id)
		FROM deposits
		WHERE pool_id = $1 AND withdrawn_at IS NULL
	`

	var count int
	if err := r.q.QueryRow(ctx, query, poolID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants for pool %s: %w", poolID, err)
	}
	return count, nil
}
