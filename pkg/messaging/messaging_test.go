package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/idcheck/mrzscan/pkg/config"
	"github.com/idcheck/mrzscan/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	data := ScanCompletedEvent{
		JobID:               "job-1",
		InputKind:           "text",
		Processor:           "mrz_text",
		Format:              "TD3",
		DocumentCode:        "P",
		IssuingState:        "UTO",
		AllCheckDigitsValid: true,
	}

	event, err := NewEvent(EventScanCompleted, "mrz-service", "req-1", data)
	require.NoError(t, err)

	assert.Equal(t, EventScanCompleted, event.Type)
	assert.Equal(t, "mrz-service", event.Source)
	assert.Equal(t, "req-1", event.CorrelationID)
	assert.False(t, event.Timestamp.IsZero())
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded ScanCompletedEvent
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_Unmarshalable(t *testing.T) {
	_, err := NewEvent(EventScanFailed, "mrz-service", "", make(chan int))
	assert.Error(t, err)
}

func TestGenerateEventID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateEventID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, CorrelationID(context.Background()))
	ctx := WithCorrelationID(context.Background(), "req-9")
	assert.Equal(t, "req-9", CorrelationID(ctx))
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	deadline bool
	err      error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	_, f.deadline = ctx.Deadline()
	return f.err
}

func newTestPublisher(ch *fakeChannel) *Publisher {
	return &Publisher{
		channel:  func() publishChannel { return ch },
		exchange: ExchangeScanEvents,
		source:   "mrz-service",
		logger:   logger.Nop(),
	}
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)

	ctx := WithCorrelationID(context.Background(), "req-3")
	require.NoError(t, p.Publish(ctx, EventScanFailed, ScanFailedEvent{JobID: "job-3", Reason: "no MRZ found"}))

	assert.Equal(t, ExchangeScanEvents, ch.exchange)
	assert.Equal(t, EventScanFailed, ch.key)
	assert.True(t, ch.deadline)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, "req-3", ch.msg.CorrelationId)
	assert.Equal(t, EventScanFailed, ch.msg.Type)
	assert.Equal(t, "mrz-service", ch.msg.AppId)

	var event Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &event))
	assert.Equal(t, event.ID, ch.msg.MessageId)
	assert.Equal(t, "req-3", event.CorrelationID)

	var data ScanFailedEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "job-3", data.JobID)
}

func TestPublisher_Publish_Errors(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := newTestPublisher(ch)

	err := p.Publish(context.Background(), EventScanCompleted, ScanCompletedEvent{JobID: "job-4"})
	assert.ErrorIs(t, err, amqp.ErrClosed)

	err = p.Publish(context.Background(), EventScanCompleted, make(chan int))
	assert.ErrorContains(t, err, "failed to create event")
}

type fakeAcknowledger struct {
	acked    bool
	nacked   bool
	requeued bool
	rejected bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected = true
	f.requeued = requeue
	return nil
}

func newTestConsumer() *Consumer {
	return newConsumer(nil, ConsumerOptions{Queue: "test"}, logger.Nop())
}

func delivery(t *testing.T, eventType string, headers amqp.Table) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	event, err := NewEvent(eventType, "mrz-service", "req-1", ScanFailedEvent{JobID: "job-1", Reason: "no MRZ found"})
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}, ack
}

func TestConsumer_HandleMessage(t *testing.T) {
	t.Run("handled events are acked", func(t *testing.T) {
		c := newTestConsumer()
		var got ScanFailedEvent
		var correlation string
		c.Handle(EventScanFailed, func(ctx context.Context, event *Event) error {
			correlation = CorrelationID(ctx)
			return event.UnmarshalData(&got)
		})

		msg, ack := delivery(t, EventScanFailed, nil)
		c.handleMessage(context.Background(), msg)

		assert.True(t, ack.acked)
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, "req-1", correlation)
	})

	t.Run("unknown events are acked and skipped", func(t *testing.T) {
		c := newTestConsumer()
		msg, ack := delivery(t, EventScanCompleted, nil)
		c.handleMessage(context.Background(), msg)
		assert.True(t, ack.acked)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		c := newTestConsumer()
		ack := &fakeAcknowledger{}
		c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeued)
	})

	t.Run("handler failure is requeued", func(t *testing.T) {
		c := newTestConsumer()
		c.Handle(EventScanFailed, func(ctx context.Context, event *Event) error {
			return errors.New("sink unavailable")
		})

		msg, ack := delivery(t, EventScanFailed, nil)
		c.handleMessage(context.Background(), msg)
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("handler failure after retries is dead-lettered", func(t *testing.T) {
		c := newTestConsumer()
		c.Handle(EventScanFailed, func(ctx context.Context, event *Event) error {
			return errors.New("sink unavailable")
		})

		headers := amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(3)}}}
		msg, ack := delivery(t, EventScanFailed, headers)
		c.handleMessage(context.Background(), msg)
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeued)
	})
}

func TestConsumer_MaxRetries(t *testing.T) {
	c := newConsumer(nil, ConsumerOptions{Queue: "test", MaxRetries: 1}, logger.Nop())
	c.Handle(EventScanFailed, func(ctx context.Context, event *Event) error {
		return errors.New("sink unavailable")
	})

	headers := amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(1)}}}
	msg, ack := delivery(t, EventScanFailed, headers)
	c.handleMessage(context.Background(), msg)
	assert.True(t, ack.rejected)
}

func TestDispose(t *testing.T) {
	failure := errors.New("boom")

	assert.Equal(t, ack, dispose(nil, 0, 3))
	assert.Equal(t, ack, dispose(nil, 5, 3))
	assert.Equal(t, requeue, dispose(failure, 0, 3))
	assert.Equal(t, requeue, dispose(failure, 2, 3))
	assert.Equal(t, deadLetter, dispose(failure, 3, 3))
	assert.Equal(t, "dead-letter", deadLetter.String())
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{"x-death": "nope"}))
	assert.Equal(t, 2, retryCount(amqp.Table{
		"x-death": []interface{}{amqp.Table{"count": int64(2)}},
	}))
	assert.Equal(t, 3, retryCount(amqp.Table{
		"x-death": []interface{}{
			amqp.Table{"count": int64(2), "queue": "scan.cli"},
			amqp.Table{"count": int32(1), "queue": "dlq.mrzscan-cli"},
			"garbage",
		},
	}))
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, time.Second, nextDelay(0))
	assert.Equal(t, 10*time.Second, nextDelay(5*time.Second))
	assert.Equal(t, maxReconnectDelay, nextDelay(20*time.Second))
	assert.Equal(t, maxReconnectDelay, nextDelay(maxReconnectDelay))
}

func TestRabbitMQ_ReconnectAfterClose(t *testing.T) {
	r := &RabbitMQ{
		cfg:    &config.RabbitMQConfig{URL: "amqp://127.0.0.1:1/", MaxRetries: 3},
		logger: logger.Nop(),
		closed: true,
	}
	assert.ErrorIs(t, r.Reconnect(context.Background()), ErrClosed)
	assert.NoError(t, r.Close())
}

func TestRabbitMQ_HealthWithoutConnection(t *testing.T) {
	r := &RabbitMQ{logger: logger.Nop()}
	status := r.Health()
	assert.Equal(t, "down", status["status"])
	assert.Equal(t, "0", status["reconnects"])
}
