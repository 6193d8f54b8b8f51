package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/idcheck/mrzscan/pkg/messaging"
)

// ScanEventHandler writes scan events as JSON lines (testable without RabbitMQ)
type ScanEventHandler struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *logger.Logger
}

// NewScanEventHandler creates a handler writing to out
func NewScanEventHandler(out io.Writer, log *logger.Logger) *ScanEventHandler {
	return &ScanEventHandler{
		enc:    json.NewEncoder(out),
		logger: log,
	}
}

type scanEventLine struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Timestamp     string      `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Data          interface{} `json:"data"`
}

// HandleEvent decodes a scan event and writes it out
func (h *ScanEventHandler) HandleEvent(ctx context.Context, event *messaging.Event) error {
	var data interface{}
	switch event.Type {
	case messaging.EventScanCompleted:
		var d messaging.ScanCompletedEvent
		if err := event.UnmarshalData(&d); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		data = d
	case messaging.EventScanFailed:
		var d messaging.ScanFailedEvent
		if err := event.UnmarshalData(&d); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		data = d
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("unknown event type received")
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(scanEventLine{
		ID:            event.ID,
		Type:          event.Type,
		Timestamp:     event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		CorrelationID: event.CorrelationID,
		Data:          data,
	})
}

// ScanEventConsumer consumes scan events from the scan exchange
type ScanEventConsumer struct {
	consumer *messaging.Consumer
	handler  *ScanEventHandler
}

// NewScanEventConsumer creates a consumer bound to every scan event
func NewScanEventConsumer(rmq *messaging.RabbitMQ, queueName string, out io.Writer, log *logger.Logger) (*ScanEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, messaging.ConsumerOptions{
		Queue:    queueName,
		Exchange: messaging.ExchangeScanEvents,
		Bindings: []string{"scan.#"},
	}, log)
	if err != nil {
		return nil, err
	}

	handler := NewScanEventHandler(out, log)
	consumer.Handle(messaging.EventScanCompleted, handler.HandleEvent)
	consumer.Handle(messaging.EventScanFailed, handler.HandleEvent)

	return &ScanEventConsumer{
		consumer: consumer,
		handler:  handler,
	}, nil
}

// Run consumes scan events until ctx is done
func (c *ScanEventConsumer) Run(ctx context.Context) error {
	return c.consumer.Run(ctx)
}
