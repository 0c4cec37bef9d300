package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"luckystake/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type accountRepository struct {
	tx *tx
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.tx.account(id).Clone(), nil
}

func (r *accountRepository) Create(ctx context.Context, id string) (*models.Account, error) {
	if existing := r.tx.account(id); existing != nil {
		return existing.Clone(), nil
	}
	account := &models.Account{
		ID:             id,
		JoinedAt:       time.Now().UTC(),
		TotalDeposited: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
	}
	r.tx.w.accounts[id] = account
	return account.Clone(), nil
}

func (r *accountRepository) get(id string) (*models.Account, error) {
	account := r.tx.accountForWrite(id)
	if account == nil {
		return nil, fmt.Errorf("account %s not found", id)
	}
	return account, nil
}

func (r *accountRepository) ApplyDeposit(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error {
	account, err := r.get(id)
	if err != nil {
		return err
	}
	account.TotalDeposited = account.TotalDeposited.Add(amount)
	account.Tickets += tickets
	return nil
}

func (r *accountRepository) ApplyWithdrawal(ctx context.Context, id string, amount decimal.Decimal, tickets int64) error {
	account, err := r.get(id)
	if err != nil {
		return err
	}
	account.TotalWithdrawn = account.TotalWithdrawn.Add(amount)
	account.Tickets -= tickets
	if account.Tickets < 0 {
		account.Tickets = 0
	}
	return nil
}

func (r *accountRepository) UpdateSettings(ctx context.Context, id string, privacyMode bool, strategy *models.AutoStrategy) error {
	account, err := r.get(id)
	if err != nil {
		return err
	}
	account.PrivacyMode = privacyMode
	account.AutoStrategy = nil
	if strategy != nil {
		s := *strategy
		account.AutoStrategy = &s
	}
	return nil
}

func (r *accountRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	account, err := r.get(id)
	if err != nil {
		return err
	}
	account.LastLoginAt = &at
	return nil
}

func (r *accountRepository) GetLeaderboardCandidates(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	for _, id := range r.tx.accountIDs() {
		a := r.tx.account(id)
		if a.PrivacyMode || !a.TotalDeposited.IsPositive() {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalDeposited.Cmp(out[j].TotalDeposited); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type depositRepository struct {
	tx *tx
}

func (r *depositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	if r.tx.deposit(deposit.ID) != nil {
		return fmt.Errorf("deposit %s already exists", deposit.ID)
	}
	if r.tx.account(deposit.AccountID) == nil {
		return fmt.Errorf("account %s not found", deposit.AccountID)
	}
	if r.tx.pool(deposit.PoolID) == nil {
		return fmt.Errorf("pool %s not found", deposit.PoolID)
	}
	r.tx.w.deposits[deposit.ID] = deposit.Clone()
	r.tx.w.newDeposits = append(r.tx.w.newDeposits, deposit.ID)
	return nil
}

func (r *depositRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	return r.tx.deposit(id).Clone(), nil
}

// GetByIDForUpdate needs no extra locking; the unit of work already holds the store.
func (r *depositRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	return r.GetByID(ctx, id)
}

func (r *depositRepository) MarkWithdrawn(ctx context.Context, id uuid.UUID, at time.Time) error {
	d := r.tx.deposit(id)
	if d == nil || !d.IsActive() {
		return fmt.Errorf("deposit %s not found or already withdrawn", id)
	}
	r.tx.depositForWrite(id).WithdrawnAt = &at
	return nil
}

func (r *depositRepository) GetByAccount(ctx context.Context, accountID string) ([]*models.Deposit, error) {
	ids := r.tx.depositIDs(r.tx.base.depositsByAccount[accountID], func(d *models.Deposit) bool {
		return d.AccountID == accountID
	})

	out := make([]*models.Deposit, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, r.tx.deposit(ids[i]).Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DepositedAt.After(out[j].DepositedAt)
	})
	return out, nil
}

func (r *depositRepository) GetByPool(ctx context.Context, poolID string, activeOnly bool) ([]*models.Deposit, error) {
	ids := r.tx.depositIDs(r.tx.base.depositsByPool[poolID], func(d *models.Deposit) bool {
		return d.PoolID == poolID
	})

	var out []*models.Deposit
	for _, id := range ids {
		d := r.tx.deposit(id)
		if activeOnly && !d.IsActive() {
			continue
		}
		out = append(out, d.Clone())
	}
	return out, nil
}

// CountActiveParticipants starts from the committed per-account counts and
// applies the deposits changed in this unit of work
func (r *depositRepository) CountActiveParticipants(ctx context.Context, poolID string) (int, error) {
	committed := r.tx.base.activeByPool[poolID]

	delta := make(map[string]int)
	for id, d := range r.tx.w.deposits {
		if d.PoolID != poolID {
			continue
		}
		wasActive := false
		if old, ok := r.tx.base.deposits[id]; ok {
			wasActive = old.IsActive()
		}
		switch {
		case d.IsActive() && !wasActive:
			delta[d.AccountID]++
		case !d.IsActive() && wasActive:
			delta[d.AccountID]--
		}
	}

	count := len(committed)
	for accountID, change := range delta {
		before := committed[accountID]
		after := before + change
		switch {
		case before > 0 && after <= 0:
			count--
		case before <= 0 && after > 0:
			count++
		}
	}
	return count, nil
}

type poolRepository struct {
	tx *tx
}

func (r *poolRepository) sorted(keep func(*models.Pool) bool) []*models.Pool {
	var out []*models.Pool
	for _, id := range r.tx.poolIDs() {
		p := r.tx.pool(id)
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IntervalDays != out[j].IntervalDays {
			return out[i].IntervalDays < out[j].IntervalDays
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *poolRepository) GetAll(ctx context.Context) ([]*models.Pool, error) {
	return r.sorted(func(*models.Pool) bool { return true }), nil
}

func (r *poolRepository) GetByID(ctx context.Context, id string) (*models.Pool, error) {
	return r.tx.pool(id).Clone(), nil
}

func (r *poolRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Pool, error) {
	return r.GetByID(ctx, id)
}

func (r *poolRepository) Update(ctx context.Context, pool *models.Pool) error {
	existing := r.tx.pool(pool.ID)
	if existing == nil {
		return fmt.Errorf("pool %s not found", pool.ID)
	}
	updated := pool.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	pool.UpdatedAt = updated.UpdatedAt
	r.tx.w.pools[pool.ID] = updated
	return nil
}

func (r *poolRepository) Upsert(ctx context.Context, pool *models.Pool) error {
	now := time.Now().UTC()
	if existing := r.tx.pool(pool.ID); existing != nil {
		updated := existing.Clone()
		updated.Name = pool.Name
		updated.MinDeposit = pool.MinDeposit
		updated.EstimatedAPY = pool.EstimatedAPY
		updated.Currency = pool.Currency
		updated.UpdatedAt = now
		pool.CreatedAt, pool.UpdatedAt = updated.CreatedAt, now
		r.tx.w.pools[pool.ID] = updated
		return nil
	}
	created := pool.Clone()
	if created.PrizeHistory == nil {
		created.PrizeHistory = make([]models.PrizeHistoryEntry, 0)
	}
	created.CreatedAt, created.UpdatedAt = now, now
	pool.CreatedAt, pool.UpdatedAt = now, now
	r.tx.w.pools[pool.ID] = created
	return nil
}

func (r *poolRepository) GetDuePools(ctx context.Context, now time.Time) ([]*models.Pool, error) {
	due := r.sorted(func(p *models.Pool) bool { return p.IsDue(now) })
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextDrawAt.Before(due[j].NextDrawAt)
	})
	return due, nil
}

func (r *poolRepository) GetNextDrawTime(ctx context.Context) (*time.Time, error) {
	var next *time.Time
	for _, id := range r.tx.poolIDs() {
		p := r.tx.pool(id)
		if next == nil || p.NextDrawAt.Before(*next) {
			t := p.NextDrawAt
			next = &t
		}
	}
	return next, nil
}

type prizeRepository struct {
	tx *tx
}

func (r *prizeRepository) Create(ctx context.Context, prize *models.Prize) error {
	if r.tx.prize(prize.ID) != nil {
		return fmt.Errorf("prize %s already exists", prize.ID)
	}
	r.tx.w.prizes[prize.ID] = prize.Clone()
	r.tx.w.newPrizes = append(r.tx.w.newPrizes, prize.ID)
	return nil
}

func (r *prizeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	return r.tx.prize(id).Clone(), nil
}

// newest returns up to limit matching prizes, latest first. A limit of zero
// or less returns every match.
func (r *prizeRepository) newest(limit int, keep func(*models.Prize) bool) []*models.Prize {
	out := make([]*models.Prize, 0)
	for _, id := range r.tx.w.newPrizes {
		if p := r.tx.w.prizes[id]; keep(p) {
			out = append(out, p.Clone())
		}
	}

	committed := r.tx.base.prizes
	taken := 0
	for i := len(committed) - 1; i >= 0; i-- {
		if limit > 0 && taken >= limit {
			break
		}
		p := r.tx.prize(committed[i].ID)
		if !keep(p) {
			continue
		}
		out = append(out, p.Clone())
		taken++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DrawnAt.After(out[j].DrawnAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *prizeRepository) GetRecent(ctx context.Context, limit int) ([]*models.Prize, error) {
	return r.newest(limit, func(*models.Prize) bool { return true }), nil
}

func (r *prizeRepository) GetByWinner(ctx context.Context, accountID string) ([]*models.Prize, error) {
	return r.newest(0, func(p *models.Prize) bool { return p.WinnerID == accountID }), nil
}

func (r *prizeRepository) SetTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	p := r.tx.prize(id)
	if p == nil || p.IsSettled() {
		return fmt.Errorf("prize %s not found or already settled", id)
	}
	r.tx.prizeForWrite(id).TxHash = &txHash
	return nil
}

type yieldRunRepository struct {
	tx *tx
}

func (r *yieldRunRepository) Create(ctx context.Context, run *models.YieldRun) error {
	stored := *run
	r.tx.w.yieldRuns = append(r.tx.w.yieldRuns, &stored)
	return nil
}

func (r *yieldRunRepository) GetLatest(ctx context.Context) (*models.YieldRun, error) {
	latest := r.tx.base.latestRun
	for _, run := range r.tx.w.yieldRuns {
		if latest == nil || !run.RanAt.Before(latest.RanAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}
