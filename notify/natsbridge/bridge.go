// Package natsbridge republishes committed ledger events on NATS subjects.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"luckystake/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	// SubjectPrefix is prepended to the event type to form the subject
	SubjectPrefix = "luckystake.events."
	sourceService = "luckystake"
)

// Publisher is the subset of *nats.Conn used by the bridge
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope wraps every bridged event
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// Bridge forwards bus events to NATS
type Bridge struct {
	publisher Publisher
	now       func() time.Time
}

// New creates a bridge over publisher
func New(publisher Publisher) *Bridge {
	return &Bridge{publisher: publisher, now: time.Now}
}

// Connect opens a NATS connection with reconnect logging
func Connect(servers string) (*nats.Conn, error) {
	nc, err := nats.Connect(servers,
		nats.Name(sourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("servers", servers).Info("Connected to NATS")
	return nc, nil
}

// Subject returns the NATS subject for an event type
func Subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

// Attach forwards every ledger event type on bus
func (b *Bridge) Attach(bus *events.Bus) {
	bus.SubscribeAll(b.HandleEvent,
		events.EventTypePoolUpdate,
		events.EventTypePrizeDrawn,
		events.EventTypeYieldUpdate,
		events.EventTypeDepositRecorded,
		events.EventTypeDepositWithdrawn,
		events.EventTypeAccountCreated,
	)
}

// HandleEvent publishes the event and logs failures
func (b *Bridge) HandleEvent(ctx context.Context, event events.Event) {
	if err := b.Forward(event); err != nil {
		log.WithField("eventType", event.Type()).WithError(err).Error("Failed to bridge event to NATS")
	}
}

// Forward wraps event in an envelope and publishes it
func (b *Bridge) Forward(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := Envelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     b.now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := Subject(event.Type())
	if err := b.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"eventType": envelope.EventType,
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published event to NATS")
	return nil
}
