// Package mq carries domain events over RabbitMQ or Google Pub/Sub.
package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/config"
)

// ContentTypeJSON is the content type assumed when an envelope names none.
const ContentTypeJSON = "application/json"

// Envelope is one event on the wire. Envelopes that share a Key are
// delivered to a subscriber in the order they were published.
type Envelope struct {
	ID          string
	Topic       string
	Key         string
	ContentType string
	Data        []byte
	PublishedAt time.Time
}

func (e Envelope) validate() error {
	if strings.TrimSpace(e.Topic) == "" {
		return errors.New("envelope topic is required")
	}
	return nil
}

func (e Envelope) contentType() string {
	if e.ContentType == "" {
		return ContentTypeJSON
	}
	return e.ContentType
}

// Handler processes one envelope. A returned error asks the broker to
// redeliver it.
type Handler func(ctx context.Context, env Envelope) error

// Backend is implemented by each broker client.
type Backend interface {
	Publish(ctx context.Context, env Envelope) (string, error)
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.Backend. It returns nil when
// event publishing is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return New(backend), nil
}

// Publish sends env on its topic and returns the broker's message id.
func (m *MQ) Publish(ctx context.Context, env Envelope) (string, error) {
	if err := env.validate(); err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, env)
}

// Subscribe delivers envelopes published on topic until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("subscribe topic is required")
	}
	return m.backend.Subscribe(ctx, topic, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
