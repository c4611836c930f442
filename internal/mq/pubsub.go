package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/flatwithoutbrokerage/flatapi/config"
	"google.golang.org/api/option"
)

// Pub/Sub has no typed envelope fields beyond the ordering key, so the rest
// travel as attributes.
const (
	attrTopic       = "topic"
	attrContentType = "content_type"
	attrEventID     = "event_id"
)

// PubSubClient publishes each event topic to a Pub/Sub topic of the same
// name with message ordering on, keyed by Envelope.Key. Subscribers read
// from "<topic><suffix>".
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{
		client:             client,
		subscriptionSuffix: suffix,
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

// Publish waits for the server to accept env. A failed keyed publish pauses
// that key inside the client, so it is resumed before returning the error.
func (p *PubSubClient) Publish(ctx context.Context, env Envelope) (string, error) {
	topic, err := p.topic(ctx, env.Topic)
	if err != nil {
		return "", err
	}
	id, err := topic.Publish(ctx, toPubSubMessage(env)).Get(ctx)
	if err != nil {
		if env.Key != "" {
			topic.ResumePublish(env.Key)
		}
		return "", err
	}
	return id, nil
}

func (p *PubSubClient) Subscribe(ctx context.Context, topicName string, handler Handler) error {
	topic, err := p.topic(ctx, topicName)
	if err != nil {
		return err
	}
	sub, err := p.subscription(ctx, topicName+p.subscriptionSuffix, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, fromPubSubMessage(topicName, msg)); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes every cached topic before closing the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the publisher for name, creating the Pub/Sub topic on first
// use. One publisher per topic is kept so that keyed messages stay ordered.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	topic.EnableMessageOrdering = true
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) subscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return sub, nil
	}
	return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:                 topic,
		AckDeadline:           30 * time.Second,
		EnableMessageOrdering: true,
	})
}

func toPubSubMessage(env Envelope) *pubsub.Message {
	attrs := map[string]string{
		attrTopic:       env.Topic,
		attrContentType: env.contentType(),
	}
	if env.ID != "" {
		attrs[attrEventID] = env.ID
	}
	return &pubsub.Message{
		Data:        env.Data,
		Attributes:  attrs,
		OrderingKey: env.Key,
	}
}

func fromPubSubMessage(topic string, msg *pubsub.Message) Envelope {
	env := Envelope{
		ID:          msg.Attributes[attrEventID],
		Topic:       msg.Attributes[attrTopic],
		Key:         msg.OrderingKey,
		ContentType: msg.Attributes[attrContentType],
		Data:        msg.Data,
		PublishedAt: msg.PublishTime,
	}
	if env.ID == "" {
		env.ID = msg.ID
	}
	if env.Topic == "" {
		env.Topic = topic
	}
	if env.ContentType == "" {
		env.ContentType = ContentTypeJSON
	}
	return env
}
