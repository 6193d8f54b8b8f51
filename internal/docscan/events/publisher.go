package events

import (
	"context"

	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/idcheck/mrzscan/pkg/messaging"
)

// Source is the event source name of the scan service
const Source = "mrz-service"

// Publisher is the subset of messaging.Publisher used here
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// ScanEventPublisher publishes scan-related events. A nil publisher is
// valid and drops every event, for deployments without a broker.
type ScanEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewScanEventPublisher creates a new scan event publisher on RabbitMQ
func NewScanEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*ScanEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeScanEvents, Source, log)
	if err != nil {
		return nil, err
	}

	return NewScanEventPublisherWith(publisher, log), nil
}

// NewScanEventPublisherWith creates a scan event publisher on top of any Publisher
func NewScanEventPublisherWith(publisher Publisher, log *logger.Logger) *ScanEventPublisher {
	return &ScanEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishScanCompleted publishes a scan completed event
func (p *ScanEventPublisher) PublishScanCompleted(ctx context.Context, job *domain.ScanJob, durationMs int64) {
	if p == nil || job.Result == nil {
		return
	}

	data := messaging.ScanCompletedEvent{
		JobID:               job.JobID,
		InputKind:           string(job.InputKind),
		Processor:           job.Result.Processor,
		Format:              job.Result.MRZ.Format.String(),
		DocumentCode:        job.Result.MRZ.DocumentCode,
		IssuingState:        job.Result.MRZ.IssuingState,
		AllCheckDigitsValid: job.Result.MRZ.AllCheckDigitsValid,
		DurationMS:          durationMs,
		Subject:             job.Subject,
	}

	if err := p.publisher.Publish(ctx, messaging.EventScanCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to publish scan completed event")
	}
}

// PublishScanFailed publishes a scan failed event
func (p *ScanEventPublisher) PublishScanFailed(ctx context.Context, job *domain.ScanJob, durationMs int64) {
	if p == nil {
		return
	}

	data := messaging.ScanFailedEvent{
		JobID:      job.JobID,
		InputKind:  string(job.InputKind),
		Reason:     job.Error,
		DurationMS: durationMs,
		Subject:    job.Subject,
	}

	if err := p.publisher.Publish(ctx, messaging.EventScanFailed, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to publish scan failed event")
	}
}
