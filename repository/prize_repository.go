package repository

import (
	"context"
	"errors"
	"fmt"

	"luckystake/database"
	"luckystake/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PrizeRepository implements the PrizeRepository interface
type PrizeRepository struct {
	q queryable
}

// NewPrizeRepository creates a new prize repository
func NewPrizeRepository(db *database.DB) *PrizeRepository {
	return &PrizeRepository{q: db.Pool}
}

// newPrizeRepositoryWithTx creates a new prize repository with a transaction
func newPrizeRepositoryWithTx(tx queryable) *PrizeRepository {
	return &PrizeRepository{q: tx}
}

const prizeColumns = `id, winner_id, amount, pool_id, drawn_at, participants, total_tickets, winner_tickets, tx_hash`

func scanPrize(row pgx.Row) (*models.Prize, error) {
	var p models.Prize
	err := row.Scan(
		&p.ID,
		&p.WinnerID,
		&p.Amount,
		&p.PoolID,
		&p.DrawnAt,
		&p.Participants,
		&p.TotalTickets,
		&p.WinnerTickets,
		&p.TxHash,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PrizeRepository) queryPrizes(ctx context.Context, query string, args ...any) ([]*models.Prize, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prizes := make([]*models.Prize, 0)
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prize: %w", err)
		}
		prizes = append(prizes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prizes: %w", err)
	}
	return prizes, nil
}

// Create inserts a drawn prize
func (r *PrizeRepository) Create(ctx context.Context, prize *models.Prize) error {
	query := `
		INSERT INTO prizes (id, winner_id, amount, pool_id, drawn_at, participants, total_tickets, winner_tickets, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		prize.ID,
		prize.WinnerID,
		prize.Amount,
		prize.PoolID,
		prize.DrawnAt,
		prize.Participants,
		prize.TotalTickets,
		prize.WinnerTickets,
		prize.TxHash,
	)
	if err != nil {
		return fmt.Errorf("failed to create prize for pool %s: %w", prize.PoolID, err)
	}
	return nil
}

// GetByID retrieves a prize by ID
func (r *PrizeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE id = $1`

	p, err := scanPrize(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prize %s: %w", id, err)
	}
	return p, nil
}

// GetRecent returns the latest prizes across all pools
func (r *PrizeRepository) GetRecent(ctx context.Context, limit int) ([]*models.Prize, error) {
	query := `
		SELECT ` + prizeColumns + `
		FROM prizes
		ORDER BY drawn_at DESC, id
		LIMIT $1
	`

	prizes, err := r.queryPrizes(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent prizes: %w", err)
	}
	return prizes, nil
}

// GetByWinner returns every prize won by an account, newest first
func (r *PrizeRepository) GetByWinner(ctx context.Context, accountID string) ([]*models.Prize, error) {
	query := `
		SELECT ` + prizeColumns + `
		FROM prizes
		WHERE winner_id = $1
		ORDER BY drawn_at DESC, id
	`

	prizes, err := r.queryPrizes(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prizes for account %s: %w", accountID, err)
	}
	return prizes, nil
}

// SetTxHash attaches the payout transaction to an unsettled prize
func (r *PrizeRepository) SetTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	query := `
		UPDATE prizes
		SET tx_hash = $1
		WHERE id = $2 AND tx_hash IS NULL
	`

	result, err := r.q.Exec(ctx, query, txHash, id)
	if err != nil {
		return fmt.Errorf("failed to settle prize %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("prize %s not found or already settled", id)
	}
	return nil
}
