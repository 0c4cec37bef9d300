package events

import (
	"context"
	"sync"

	"luckystake/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePoolUpdate       EventType = "pool_update"
	EventTypePrizeDrawn       EventType = "prize_drawn"
	EventTypeYieldUpdate      EventType = "yield_update"
	EventTypeDepositRecorded  EventType = "deposit_recorded"
	EventTypeDepositWithdrawn EventType = "deposit_withdrawn"
	EventTypeAccountCreated   EventType = "account_created"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PoolUpdateEvent carries the state of a pool after a ledger mutation
type PoolUpdateEvent struct {
	PoolID string       `json:"poolType"`
	Pool   *models.Pool `json:"pool"`
}

func (e PoolUpdateEvent) Type() EventType {
	return EventTypePoolUpdate
}

// PrizeDrawnEvent is emitted once a draw has been committed
type PrizeDrawnEvent struct {
	Prize *models.Prize `json:"prize"`
	Pool  *models.Pool  `json:"pool"`
}

func (e PrizeDrawnEvent) Type() EventType {
	return EventTypePrizeDrawn
}

// YieldUpdateEvent reports the result of a yield accrual run
type YieldUpdateEvent struct {
	Pools []models.PoolYield `json:"pools"`
}

func (e YieldUpdateEvent) Type() EventType {
	return EventTypeYieldUpdate
}

// DepositRecordedEvent represents a new deposit entering a pool
type DepositRecordedEvent struct {
	Deposit *models.Deposit `json:"deposit"`
}

func (e DepositRecordedEvent) Type() EventType {
	return EventTypeDepositRecorded
}

// DepositWithdrawnEvent represents a deposit leaving a pool
type DepositWithdrawnEvent struct {
	Deposit *models.Deposit `json:"deposit"`
}

func (e DepositWithdrawnEvent) Type() EventType {
	return EventTypeDepositWithdrawn
}

// AccountCreatedEvent represents a first-time account
type AccountCreatedEvent struct {
	AccountID string `json:"publicKey"`
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for each of the given event types
func (b *Bus) SubscribeAll(handler Handler, eventTypes ...EventType) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines and a panicking handler is logged and
// otherwise ignored.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event until commit")
	b.pending = append(b.pending, e)
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush emits queued events; called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing transactional bus")

	// The transaction context may already be done; emission is detached from it.
	eventCtx := context.WithoutCancel(ctx)

	if b.real != nil {
		for _, ev := range b.pending {
			b.real.Emit(eventCtx, ev)
		}
	}
	b.pending = nil
	return nil
}

// Discard drops queued events; called after rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
