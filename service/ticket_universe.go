package service

import (
	"errors"
	"fmt"
	"sort"

	"luckystake/models"
)

var errEmptyUniverse = errors.New("ticket universe is empty")

// TicketUniverse is the weighted set of active deposits taking part in a draw.
// Deposits are laid out end to end by ticket count; cumulative[i] is the
// exclusive upper bound of deposit i's ticket range.
type TicketUniverse struct {
	deposits   []*models.Deposit
	cumulative []int64
	total      int64
	byAccount  map[string]int64
}

// NewTicketUniverse builds the universe from a pool's deposits. Withdrawn
// deposits and deposits without tickets take no slots.
func NewTicketUniverse(deposits []*models.Deposit) *TicketUniverse {
	u := &TicketUniverse{
		deposits:   make([]*models.Deposit, 0, len(deposits)),
		cumulative: make([]int64, 0, len(deposits)),
		byAccount:  make(map[string]int64),
	}
	for _, d := range deposits {
		if !d.IsActive() || d.Tickets <= 0 {
			continue
		}
		u.total += d.Tickets
		u.deposits = append(u.deposits, d)
		u.cumulative = append(u.cumulative, u.total)
		u.byAccount[d.AccountID] += d.Tickets
	}
	return u
}

// Total returns the number of tickets in the universe
func (u *TicketUniverse) Total() int64 {
	return u.total
}

// Participants returns the number of distinct accounts holding tickets
func (u *TicketUniverse) Participants() int {
	return len(u.byAccount)
}

// AccountTickets returns the tickets held by one account
func (u *TicketUniverse) AccountTickets(accountID string) int64 {
	return u.byAccount[accountID]
}

// DepositAt returns the deposit owning ticket slot, 0 <= slot < Total()
func (u *TicketUniverse) DepositAt(slot int64) (*models.Deposit, error) {
	if slot < 0 || slot >= u.total {
		return nil, fmt.Errorf("ticket slot %d outside universe of %d", slot, u.total)
	}
	i := sort.Search(len(u.cumulative), func(i int) bool {
		return u.cumulative[i] > slot
	})
	return u.deposits[i], nil
}

// Pick draws one ticket uniformly and returns the deposit that owns it
func (u *TicketUniverse) Pick(rng RandomSource) (*models.Deposit, error) {
	if u.total == 0 {
		return nil, errEmptyUniverse
	}
	slot, err := rng.Int63n(u.total)
	if err != nil {
		return nil, err
	}
	return u.DepositAt(slot)
}
