// Package memory is an in-process implementation of the repository layer. A
// unit of work takes the store's single lock and records its writes in a
// private overlay of the records it touched. Commit applies the overlay and
// maintains the indexes, so transactions are serializable and a rollback
// leaves no trace.
package memory

import (
	"context"
	"fmt"

	"luckystake/events"
	"luckystake/models"
	"luckystake/service"

	"github.com/google/uuid"
)

// Store holds all ledger state in memory
type Store struct {
	sem   chan struct{}
	state *state
	bus   *events.Bus
}

// state is the committed data. Values are never handed out directly;
// repositories return clones.
type state struct {
	accounts map[string]*models.Account

	deposits          map[uuid.UUID]*models.Deposit
	depositsByPool    map[string][]uuid.UUID
	depositsByAccount map[string][]uuid.UUID
	// activeByPool counts active deposits per account in each pool
	activeByPool map[string]map[string]int

	pools map[string]*models.Pool

	// prizes is ordered by DrawnAt, oldest first
	prizes     []*models.Prize
	prizeIndex map[uuid.UUID]*models.Prize

	yieldRuns []*models.YieldRun
	latestRun *models.YieldRun
}

func newState() *state {
	return &state{
		accounts:          make(map[string]*models.Account),
		deposits:          make(map[uuid.UUID]*models.Deposit),
		depositsByPool:    make(map[string][]uuid.UUID),
		depositsByAccount: make(map[string][]uuid.UUID),
		activeByPool:      make(map[string]map[string]int),
		pools:             make(map[string]*models.Pool),
		prizeIndex:        make(map[uuid.UUID]*models.Prize),
	}
}

// overlay holds the records a unit of work created or changed
type overlay struct {
	accounts    map[string]*models.Account
	deposits    map[uuid.UUID]*models.Deposit
	newDeposits []uuid.UUID
	pools       map[string]*models.Pool
	prizes      map[uuid.UUID]*models.Prize
	newPrizes   []uuid.UUID
	yieldRuns   []*models.YieldRun
}

func newOverlay() *overlay {
	return &overlay{
		accounts: make(map[string]*models.Account),
		deposits: make(map[uuid.UUID]*models.Deposit),
		pools:    make(map[string]*models.Pool),
		prizes:   make(map[uuid.UUID]*models.Prize),
	}
}

// apply merges a committed overlay into the state
func (s *state) apply(w *overlay) {
	for id, a := range w.accounts {
		s.accounts[id] = a
	}

	for _, id := range w.newDeposits {
		d := w.deposits[id]
		s.depositsByPool[d.PoolID] = append(s.depositsByPool[d.PoolID], id)
		s.depositsByAccount[d.AccountID] = append(s.depositsByAccount[d.AccountID], id)
	}
	for id, d := range w.deposits {
		wasActive := false
		if old, ok := s.deposits[id]; ok {
			wasActive = old.IsActive()
		}
		switch {
		case d.IsActive() && !wasActive:
			s.adjustActive(d.PoolID, d.AccountID, 1)
		case !d.IsActive() && wasActive:
			s.adjustActive(d.PoolID, d.AccountID, -1)
		}
		s.deposits[id] = d
	}

	for id, p := range w.pools {
		s.pools[id] = p
	}

	for id, p := range w.prizes {
		if existing, ok := s.prizeIndex[id]; ok {
			*existing = *p
		}
	}
	for _, id := range w.newPrizes {
		s.insertPrize(w.prizes[id])
	}

	for _, run := range w.yieldRuns {
		s.yieldRuns = append(s.yieldRuns, run)
		if s.latestRun == nil || !run.RanAt.Before(s.latestRun.RanAt) {
			s.latestRun = run
		}
	}
}

func (s *state) adjustActive(poolID, accountID string, delta int) {
	counts := s.activeByPool[poolID]
	if counts == nil {
		counts = make(map[string]int)
		s.activeByPool[poolID] = counts
	}
	counts[accountID] += delta
	if counts[accountID] <= 0 {
		delete(counts, accountID)
	}
}

// insertPrize keeps prizes sorted by draw time. New prizes almost always
// land at the end.
func (s *state) insertPrize(p *models.Prize) {
	i := len(s.prizes)
	for i > 0 && s.prizes[i-1].DrawnAt.After(p.DrawnAt) {
		i--
	}
	s.prizes = append(s.prizes, nil)
	copy(s.prizes[i+1:], s.prizes[i:])
	s.prizes[i] = p
	s.prizeIndex[p.ID] = p
}

// NewStore creates an empty store. Events raised by committed units of work
// are emitted on bus, which may be nil.
func NewStore(bus *events.Bus) *Store {
	return &Store{
		sem:   make(chan struct{}, 1),
		state: newState(),
		bus:   bus,
	}
}

// NewUnitOfWorkFactory returns a factory of units of work over this store
func (s *Store) NewUnitOfWorkFactory() service.UnitOfWorkFactory {
	return &unitOfWorkFactory{store: s}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for store lock: %w", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.sem
}
