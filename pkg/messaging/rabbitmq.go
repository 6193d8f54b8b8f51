package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/idcheck/mrzscan/pkg/config"
	"github.com/idcheck/mrzscan/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterExchange receives messages rejected by any consumer queue
const DeadLetterExchange = "dlx.events"

const maxReconnectDelay = 30 * time.Second

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("rabbitmq: connection closed by client")

// RabbitMQ owns one connection and channel and replaces both when the
// broker drops them.
type RabbitMQ struct {
	cfg    *config.RabbitMQConfig
	logger *logger.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	reconnects atomic.Int64
}

// New dials the broker.
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	conn, ch, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Int("prefetch", cfg.PrefetchCount).Msg("connected to RabbitMQ")

	return &RabbitMQ{cfg: cfg, logger: log, conn: conn, channel: ch}, nil
}

func dial(cfg *config.RabbitMQConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	return conn, ch, nil
}

// Channel returns the live channel. Callers must not keep it across a
// reconnect.
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close shuts the connection down for good. WatchConnection returns after it.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports whether the connection is open and how often it was
// re-established.
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status":     "up",
		"reconnects": strconv.FormatInt(r.reconnects.Load(), 10),
	}
	if r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "connection closed"
	}
	return status
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

// DeclareQueue declares a durable queue whose rejected messages go to
// DeadLetterExchange.
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel().QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	return r.Channel().QueueBind(queue, routingKey, exchange, false, nil)
}

// DeclareDeadLetterQueue declares DeadLetterExchange and a dlq.<owner>
// queue catching everything dead-lettered to it.
func (r *RabbitMQ) DeclareDeadLetterQueue(owner string) error {
	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	queue := "dlq." + owner
	if _, err := r.Channel().QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	if err := r.BindQueue(queue, DeadLetterExchange, "#"); err != nil {
		return fmt.Errorf("failed to bind %s: %w", queue, err)
	}
	return nil
}

// WatchConnection re-dials whenever the broker drops the connection. It
// returns when ctx is done, after Close, or once MaxRetries dials in a row
// have failed.
func (r *RabbitMQ) WatchConnection(ctx context.Context) {
	for {
		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()
		lost := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			return
		case amqpErr, ok := <-lost:
			if !ok || amqpErr == nil {
				// graceful close
				return
			}
			r.logger.Warn().Str("reason", amqpErr.Reason).Int("code", amqpErr.Code).Msg("RabbitMQ connection lost")
		}

		if err := r.Reconnect(ctx); err != nil {
			r.logger.Error().Err(err).Msg("giving up on RabbitMQ")
			return
		}
	}
}

// Reconnect dials again with exponential backoff starting at
// ReconnectDelay. The lock is only held to swap the new connection in.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	delay := r.cfg.ReconnectDelay
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.isClosed() {
			return ErrClosed
		}

		conn, ch, err := dial(r.cfg)
		if err == nil {
			return r.swap(conn, ch, attempt)
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("reconnect failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay)
	}
	return fmt.Errorf("failed to reconnect after %d attempts", r.cfg.MaxRetries)
}

func (r *RabbitMQ) swap(conn *amqp.Connection, ch *amqp.Channel, attempt int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		conn.Close()
		return ErrClosed
	}

	r.conn, r.channel = conn, ch
	r.reconnects.Add(1)
	r.logger.Info().Int("attempt", attempt).Msg("reconnected to RabbitMQ")
	return nil
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func nextDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
