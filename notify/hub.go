// Package notify fans committed ledger events out to connected observers.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"luckystake/events"
	"luckystake/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// MessageTypeInit is the first message every observer receives
	MessageTypeInit = "init"
	MessageTypePong = "pong"

	// DefaultBufferSize is the per-observer queue length
	DefaultBufferSize = 32
	// SnapshotPrizes is the number of recent prizes included in the init message
	SnapshotPrizes = 5
)

// Message is the envelope written to observers
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SnapshotProvider loads the state handed to a new observer
type SnapshotProvider interface {
	Snapshot(ctx context.Context, prizeLimit int) (*models.Snapshot, error)
}

// ObserverMetrics receives hub occupancy and drop counts
type ObserverMetrics interface {
	SetObservers(n int)
	ObserverDropped()
}

// Observer is one subscriber's queue. Messages arrive on C until the observer
// is unsubscribed, at which point C is closed.
type Observer struct {
	ID uuid.UUID
	C  <-chan Message

	send      chan Message
	closeOnce sync.Once
}

func (o *Observer) close() {
	o.closeOnce.Do(func() { close(o.send) })
}

// Hub is the observer registry. Delivery is at-most-once: a message that does
// not fit in an observer's buffer is dropped for that observer only.
type Hub struct {
	mu        sync.RWMutex
	observers map[uuid.UUID]*Observer
	buffer    int
	snapshots SnapshotProvider
	metrics   ObserverMetrics
	now       func() time.Time
}

// NewHub creates a hub. snapshots and metrics may be nil.
func NewHub(snapshots SnapshotProvider, metrics ObserverMetrics, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Hub{
		observers: make(map[uuid.UUID]*Observer),
		buffer:    buffer,
		snapshots: snapshots,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Subscribe registers a new observer whose first message is the init snapshot
func (h *Hub) Subscribe(ctx context.Context) (*Observer, error) {
	var snapshot *models.Snapshot
	if h.snapshots != nil {
		s, err := h.snapshots.Snapshot(ctx, SnapshotPrizes)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		snapshot = s
	}

	send := make(chan Message, h.buffer)
	o := &Observer{ID: uuid.New(), C: send, send: send}
	if snapshot != nil {
		send <- h.message(MessageTypeInit, snapshot)
	}

	h.mu.Lock()
	h.observers[o.ID] = o
	count := len(h.observers)
	h.mu.Unlock()

	h.reportObservers(count)
	log.WithFields(log.Fields{
		"observer": o.ID,
		"total":    count,
	}).Debug("Observer subscribed")

	return o, nil
}

// Unsubscribe removes the observer and closes its channel. It is safe to call
// more than once.
func (h *Hub) Unsubscribe(o *Observer) {
	h.mu.Lock()
	_, ok := h.observers[o.ID]
	delete(h.observers, o.ID)
	count := len(h.observers)
	h.mu.Unlock()

	o.close()
	if !ok {
		return
	}

	h.reportObservers(count)
	log.WithFields(log.Fields{
		"observer": o.ID,
		"total":    count,
	}).Debug("Observer unsubscribed")
}

// Publish delivers a message to every observer without blocking and returns
// the number of observers that received it.
func (h *Hub) Publish(msgType string, data interface{}) int {
	msg := h.message(msgType, data)

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, o := range h.observers {
		select {
		case o.send <- msg:
			delivered++
		default:
			if h.metrics != nil {
				h.metrics.ObserverDropped()
			}
			log.WithFields(log.Fields{
				"observer": o.ID,
				"type":     msgType,
			}).Warn("Observer buffer full, dropping message")
		}
	}
	return delivered
}

// Count returns the number of registered observers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Close unsubscribes every observer
func (h *Hub) Close() {
	h.mu.Lock()
	observers := h.observers
	h.observers = make(map[uuid.UUID]*Observer)
	h.mu.Unlock()

	for _, o := range observers {
		o.close()
	}
	h.reportObservers(0)
}

// Attach forwards the public ledger events from bus to observers
func (h *Hub) Attach(bus *events.Bus) {
	bus.SubscribeAll(h.HandleEvent,
		events.EventTypePoolUpdate,
		events.EventTypePrizeDrawn,
		events.EventTypeYieldUpdate,
	)
}

// HandleEvent converts a committed event into an observer message
func (h *Hub) HandleEvent(ctx context.Context, event events.Event) {
	var data interface{}
	switch e := event.(type) {
	case events.PoolUpdateEvent:
		data = e
	case events.PrizeDrawnEvent:
		data = struct {
			PoolID string        `json:"poolType"`
			Prize  *models.Prize `json:"prize"`
		}{e.Prize.PoolID, e.Prize}
	case events.YieldUpdateEvent:
		data = e
	default:
		return
	}
	h.Publish(string(event.Type()), data)
}

func (h *Hub) message(msgType string, data interface{}) Message {
	return Message{Type: msgType, Data: data, Timestamp: h.now().UTC()}
}

func (h *Hub) reportObservers(n int) {
	if h.metrics != nil {
		h.metrics.SetObservers(n)
	}
}
