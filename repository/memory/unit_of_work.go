package memory

import (
	"context"
	"fmt"

	"luckystake/events"
	"luckystake/models"
	"luckystake/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type unitOfWorkFactory struct {
	store *Store
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.store.bus),
	}
}

// unitOfWork implements service.UnitOfWork with an overlay over the store
type unitOfWork struct {
	store            *Store
	ctx              context.Context
	tx               *tx
	transactionalBus *events.TransactionalBus
}

// Begin waits for exclusive access to the store
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	if err := u.store.acquire(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	u.ctx = ctx
	u.tx = &tx{base: u.store.state, w: newOverlay()}
	return nil
}

// Commit applies the overlay and then delivers pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	u.store.state.apply(u.tx.w)
	u.tx = nil
	u.store.release()

	if err := u.transactionalBus.Flush(u.ctx); err != nil {
		log.WithError(err).Warn("Failed to flush events after commit")
	}
	return nil
}

// Rollback drops the overlay and pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	u.tx = nil
	u.store.release()
	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) mustTx() *tx {
	if u.tx == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.tx
}

func (u *unitOfWork) AccountRepository() service.AccountRepository {
	return &accountRepository{tx: u.mustTx()}
}

func (u *unitOfWork) DepositRepository() service.DepositRepository {
	return &depositRepository{tx: u.mustTx()}
}

func (u *unitOfWork) PoolRepository() service.PoolRepository {
	return &poolRepository{tx: u.mustTx()}
}

func (u *unitOfWork) PrizeRepository() service.PrizeRepository {
	return &prizeRepository{tx: u.mustTx()}
}

func (u *unitOfWork) YieldRunRepository() service.YieldRunRepository {
	return &yieldRunRepository{tx: u.mustTx()}
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}

// tx resolves reads against the overlay first and the committed state second.
// Records are copied into the overlay on first write.
type tx struct {
	base *state
	w    *overlay
}

func (t *tx) account(id string) *models.Account {
	if a, ok := t.w.accounts[id]; ok {
		return a
	}
	return t.base.accounts[id]
}

func (t *tx) accountForWrite(id string) *models.Account {
	if a, ok := t.w.accounts[id]; ok {
		return a
	}
	a, ok := t.base.accounts[id]
	if !ok {
		return nil
	}
	c := a.Clone()
	t.w.accounts[id] = c
	return c
}

// accountIDs lists committed and newly created accounts
func (t *tx) accountIDs() []string {
	ids := make([]string, 0, len(t.base.accounts))
	for id := range t.base.accounts {
		ids = append(ids, id)
	}
	for id := range t.w.accounts {
		if _, ok := t.base.accounts[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *tx) deposit(id uuid.UUID) *models.Deposit {
	if d, ok := t.w.deposits[id]; ok {
		return d
	}
	return t.base.deposits[id]
}

func (t *tx) depositForWrite(id uuid.UUID) *models.Deposit {
	if d, ok := t.w.deposits[id]; ok {
		return d
	}
	d, ok := t.base.deposits[id]
	if !ok {
		return nil
	}
	c := d.Clone()
	t.w.deposits[id] = c
	return c
}

// depositIDs returns the committed ids from index followed by the new ids
// that match keep, both in insertion order
func (t *tx) depositIDs(index []uuid.UUID, keep func(*models.Deposit) bool) []uuid.UUID {
	ids := append([]uuid.UUID(nil), index...)
	for _, id := range t.w.newDeposits {
		if keep(t.w.deposits[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *tx) pool(id string) *models.Pool {
	if p, ok := t.w.pools[id]; ok {
		return p
	}
	return t.base.pools[id]
}

func (t *tx) poolIDs() []string {
	ids := make([]string, 0, len(t.base.pools))
	for id := range t.base.pools {
		ids = append(ids, id)
	}
	for id := range t.w.pools {
		if _, ok := t.base.pools[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *tx) prize(id uuid.UUID) *models.Prize {
	if p, ok := t.w.prizes[id]; ok {
		return p
	}
	return t.base.prizeIndex[id]
}

func (t *tx) prizeForWrite(id uuid.UUID) *models.Prize {
	if p, ok := t.w.prizes[id]; ok {
		return p
	}
	p, ok := t.base.prizeIndex[id]
	if !ok {
		return nil
	}
	c := p.Clone()
	t.w.prizes[id] = c
	return c
}
