package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/idcheck/mrzscan/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultMaxRetries is how many times a failing event is redelivered
// before it is dead-lettered.
const DefaultMaxRetries = 3

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery channel.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// MessageHandler processes one decoded event
type MessageHandler func(ctx context.Context, event *Event) error

// ConsumerOptions describes the queue a consumer reads from and what it is
// bound to.
type ConsumerOptions struct {
	Queue    string
	Exchange string
	// Bindings are routing key patterns, e.g. "scan.#"
	Bindings   []string
	MaxRetries int
}

// Consumer reads events from one queue and dispatches them by type
type Consumer struct {
	rmq        *RabbitMQ
	queue      string
	maxRetries int
	handlers   map[string]MessageHandler
	logger     *logger.Logger
}

// NewConsumer declares the queue and its exchange bindings.
func NewConsumer(rmq *RabbitMQ, opts ConsumerOptions, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(opts.Queue); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", opts.Queue, err)
	}
	if opts.Exchange != "" {
		if err := rmq.DeclareExchange(opts.Exchange); err != nil {
			return nil, fmt.Errorf("failed to declare exchange %s: %w", opts.Exchange, err)
		}
		for _, key := range opts.Bindings {
			if err := rmq.BindQueue(opts.Queue, opts.Exchange, key); err != nil {
				return nil, fmt.Errorf("failed to bind %s to %s: %w", opts.Queue, key, err)
			}
		}
		log.Info().
			Str("queue", opts.Queue).
			Str("exchange", opts.Exchange).
			Strs("bindings", opts.Bindings).
			Msg("queue bound")
	}

	return newConsumer(rmq, opts, log), nil
}

func newConsumer(rmq *RabbitMQ, opts ConsumerOptions, log *logger.Logger) *Consumer {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Consumer{
		rmq:        rmq,
		queue:      opts.Queue,
		maxRetries: opts.MaxRetries,
		handlers:   make(map[string]MessageHandler),
		logger:     log,
	}
}

// Handle registers the handler for an event type. Events without a handler
// are acknowledged and dropped.
func (c *Consumer) Handle(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Run consumes until ctx is done. It returns nil on cancellation and
// ErrDeliveriesClosed when the broker ends the subscription.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.rmq.Channel().ConsumeWithContext(ctx,
		c.queue,
		"",    // generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}
	c.logger.Info().Str("queue", c.queue).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queue).Msg("consumer stopped")
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			c.handleMessage(ctx, msg)
		}
	}
}

// disposition is what happens to a delivery once it was handled
type disposition int

const (
	ack disposition = iota
	requeue
	deadLetter
)

func (d disposition) String() string {
	switch d {
	case ack:
		return "ack"
	case requeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// dispose picks the disposition for a handler outcome. Failures are
// requeued until the broker has dead-lettered the message maxRetries times.
func dispose(handlerErr error, retries, maxRetries int) disposition {
	switch {
	case handlerErr == nil:
		return ack
	case retries >= maxRetries:
		return deadLetter
	default:
		return requeue
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("malformed event dead-lettered")
		msg.Reject(false)
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler for event type")
		msg.Ack(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	err := handler(ctx, &event)
	retries := retryCount(msg.Headers)
	d := dispose(err, retries, c.maxRetries)

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("retries", retries).
			Stringer("disposition", d).
			Msg("event handler failed")
	}

	switch d {
	case ack:
		msg.Ack(false)
	case requeue:
		msg.Nack(false, true)
	case deadLetter:
		msg.Reject(false)
	}
}

// retryCount sums the x-death counts the broker attached to a message.
func retryCount(headers amqp.Table) int {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	total := 0
	for _, death := range deaths {
		d, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		switch n := d["count"].(type) {
		case int64:
			total += int(n)
		case int32:
			total += int(n)
		case int:
			total += n
		}
	}
	return total
}
