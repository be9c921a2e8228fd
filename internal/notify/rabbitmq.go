package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

// amqpChannel is the part of *amqp091.Channel the broker uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Broker relays change events through RabbitMQ so that every portal process
// sees changes made by the others. Publishing and consuming use separate
// channels on one connection.
type Broker struct {
	conn       *amqp091.Connection
	publishCh  amqpChannel
	consumeCh  amqpChannel
	exchange   string
	routingKey string
	queueName  string
	logger     zerolog.Logger
}

func NewBroker(url, exchange, routingKey, queueName string, logger zerolog.Logger) (*Broker, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		queue.Name, // queue name
		routingKey, // routing key
		exchange,   // exchange
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	logger.Info().
		Str("exchange", exchange).
		Str("queue", queue.Name).
		Str("routing_key", routingKey).
		Msg("Connected to RabbitMQ")

	return &Broker{
		conn:       conn,
		publishCh:  channel,
		consumeCh:  consumeCh,
		exchange:   exchange,
		routingKey: routingKey,
		queueName:  queue.Name,
		logger:     logger,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, evt models.ChangeEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = b.publishCh.PublishWithContext(
		publishCtx,
		b.exchange,   // exchange
		b.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   evt.ID,
			Body:        body,
			Timestamp:   evt.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	b.logger.Debug().
		Str("event_id", evt.ID).
		Str("table", evt.Table).
		Str("type", string(evt.Type)).
		Msg("Change event published")

	return nil
}

// Forward consumes the queue and republishes every event on local until ctx
// ends or the delivery channel closes.
func (b *Broker) Forward(ctx context.Context, local Publisher) error {
	msgs, err := b.consumeCh.Consume(
		b.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	b.logger.Info().Str("queue", b.queueName).Msg("RabbitMQ consumer started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Stopping RabbitMQ consumer")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				b.logger.Warn().Msg("RabbitMQ message channel closed")
				return nil
			}
			b.handle(ctx, msg, local)
		}
	}
}

func (b *Broker) handle(ctx context.Context, msg amqp091.Delivery, local Publisher) {
	var evt models.ChangeEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		b.logger.Error().Err(err).Msg("Dropping malformed change event")
		_ = msg.Nack(false, false)
		return
	}
	if err := local.Publish(ctx, evt); err != nil {
		b.logger.Error().Err(err).Str("event_id", evt.ID).Msg("Failed to forward change event")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func (b *Broker) Close() error {
	for _, ch := range []amqpChannel{b.consumeCh, b.publishCh} {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil {
			b.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			b.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}
