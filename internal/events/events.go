// Package events defines the domain events emitted after listing and contact
// writes, and publishes them as JSON over the message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/mq"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/google/uuid"
)

const (
	ContactRevealed       = "contact.revealed"
	PropertyCreated       = "property.created"
	PropertyUpdated       = "property.updated"
	PropertyStatusChanged = "property.status_changed"
	PropertyDeleted       = "property.deleted"
)

// Topics lists every topic the API publishes.
var Topics = []string{
	ContactRevealed,
	PropertyCreated,
	PropertyUpdated,
	PropertyStatusChanged,
	PropertyDeleted,
}

// PropertyEvent describes a change to a listing.
type PropertyEvent struct {
	PropertyID     string               `json:"propertyId"`
	OwnerID        string               `json:"ownerId"`
	ActorID        string               `json:"actorId"`
	Status         types.PropertyStatus `json:"status,omitempty"`
	PreviousStatus types.PropertyStatus `json:"previousStatus,omitempty"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

// ContactRevealedEvent mirrors one contact_access row.
type ContactRevealedEvent struct {
	AccessID   string    `json:"accessId"`
	ViewerID   string    `json:"viewerId"`
	OwnerID    string    `json:"ownerId"`
	PropertyID string    `json:"propertyId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderingKey keeps every event about one listing in publish order.
func (e PropertyEvent) OrderingKey() string { return e.PropertyID }

func (e ContactRevealedEvent) OrderingKey() string { return e.PropertyID }

// Sender is the subset of the message queue used for publishing.
type Sender interface {
	Publish(ctx context.Context, env mq.Envelope) (string, error)
}

// Publisher encodes events as JSON envelopes and sends them on the topic.
type Publisher struct {
	sender Sender
	newID  func() string
}

func NewPublisher(sender Sender) *Publisher {
	return &Publisher{sender: sender, newID: uuid.NewString}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	env := mq.Envelope{
		ID:          p.newID(),
		Topic:       topic,
		ContentType: mq.ContentTypeJSON,
		Data:        data,
	}
	if keyed, ok := event.(interface{ OrderingKey() string }); ok {
		env.Key = keyed.OrderingKey()
	}
	if _, err := p.sender.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
