package service

import (
	"fmt"
	"time"
)

// ValidationError reports malformed or out-of-range input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ForbiddenError reports an account acting on a resource it does not own
type ForbiddenError struct {
	Resource  string
	ID        string
	AccountID string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s is not owned by %s", e.Resource, e.ID, e.AccountID)
}

// AlreadyWithdrawnError reports a second withdrawal of the same deposit
type AlreadyWithdrawnError struct {
	DepositID   string
	WithdrawnAt time.Time
}

func (e *AlreadyWithdrawnError) Error() string {
	return fmt.Sprintf("deposit %s already withdrawn at %s", e.DepositID, e.WithdrawnAt.UTC().Format(time.RFC3339))
}

// NoYieldError reports a draw on a pool with nothing to award
type NoYieldError struct {
	PoolID string
}

func (e *NoYieldError) Error() string {
	return fmt.Sprintf("pool %s has no accrued yield", e.PoolID)
}

// NoParticipantsError reports a draw on a pool without active deposits
type NoParticipantsError struct {
	PoolID string
}

func (e *NoParticipantsError) Error() string {
	return fmt.Sprintf("pool %s has no participants", e.PoolID)
}

// DrawInProgressError reports a draw requested while another one for the same
// pool has not settled
type DrawInProgressError struct {
	PoolID string
}

func (e *DrawInProgressError) Error() string {
	return fmt.Sprintf("draw already in progress for pool %s", e.PoolID)
}
