package mq

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	appID = "flatapi"
	// headerKey carries Envelope.Key; AMQP has no ordering-key property.
	headerKey = "x-ordering-key"
)

// RabbitMQClient publishes each event topic to a queue of the same name on
// the default exchange. A queue is FIFO, so envelopes with one key arrive in
// order as long as a single consumer drains it.
type RabbitMQClient struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	durable    bool
	autoDelete bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:       conn,
		channel:    ch,
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, env Envelope) (string, error) {
	if err := r.declare(env.Topic); err != nil {
		return "", err
	}
	msg := toPublishing(env, r.durable, time.Now().UTC())
	if err := r.channel.PublishWithContext(ctx, "", env.Topic, false, false, msg); err != nil {
		return "", err
	}
	return msg.MessageId, nil
}

// Subscribe acks each delivery its handler accepts. A failed delivery is
// requeued once and dropped if it fails again.
func (r *RabbitMQClient) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if err := r.declare(topic); err != nil {
		return err
	}

	consumerTag := appID + "-" + uuid.NewString()
	deliveries, err := r.channel.Consume(topic, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() { _ = r.channel.Cancel(consumerTag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, fromDelivery(topic, d)); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declare(queue string) error {
	_, err := r.channel.QueueDeclare(queue, r.durable, r.autoDelete, false, false, nil)
	return err
}

func toPublishing(env Envelope, durable bool, now time.Time) amqp.Publishing {
	id := env.ID
	if id == "" {
		id = uuid.NewString()
	}
	mode := amqp.Transient
	if durable {
		mode = amqp.Persistent
	}
	msg := amqp.Publishing{
		AppId:        appID,
		Type:         env.Topic,
		ContentType:  env.contentType(),
		DeliveryMode: mode,
		MessageId:    id,
		Timestamp:    now,
		Body:         env.Data,
	}
	if env.Key != "" {
		msg.Headers = amqp.Table{headerKey: env.Key}
	}
	return msg
}

func fromDelivery(queue string, d amqp.Delivery) Envelope {
	env := Envelope{
		ID:          d.MessageId,
		Topic:       d.Type,
		ContentType: d.ContentType,
		Data:        d.Body,
		PublishedAt: d.Timestamp,
	}
	switch key := d.Headers[headerKey].(type) {
	case string:
		env.Key = key
	case []byte:
		env.Key = string(key)
	}
	if env.Topic == "" {
		env.Topic = queue
	}
	if env.ContentType == "" {
		env.ContentType = ContentTypeJSON
	}
	return env
}
