package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventScanCompleted = "scan.completed"
	EventScanFailed    = "scan.failed"
)

// Exchange names
const (
	ExchangeScanEvents = "scan.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Scan Events
//
// Events never carry MRZ personal data (names, numbers, dates): consumers
// that need it fetch the job result while it is still held by the service.

// ScanCompletedEvent is published when a scan job produced an MRZ result
type ScanCompletedEvent struct {
	JobID               string `json:"job_id"`
	InputKind           string `json:"input_kind"`
	Processor           string `json:"processor"`
	Format              string `json:"format"`
	DocumentCode        string `json:"document_code"`
	IssuingState        string `json:"issuing_state"`
	AllCheckDigitsValid bool   `json:"all_check_digits_valid"`
	DurationMS          int64  `json:"duration_ms"`
	Subject             string `json:"subject,omitempty"`
}

// ScanFailedEvent is published when a scan job ended without a result
type ScanFailedEvent struct {
	JobID      string `json:"job_id"`
	InputKind  string `json:"input_kind"`
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
	Subject    string `json:"subject,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
