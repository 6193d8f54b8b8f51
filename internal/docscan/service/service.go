package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/internal/docscan/processor"
	"github.com/idcheck/mrzscan/internal/docscan/repository"
	"github.com/idcheck/mrzscan/internal/docscan/storage"
	apperrors "github.com/idcheck/mrzscan/pkg/errors"
	"github.com/idcheck/mrzscan/pkg/httputil"
	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/idcheck/mrzscan/pkg/messaging"
)

// AuditStore persists the audit trail of finished scans
type AuditStore interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter *repository.ListFilter, page, perPage int) ([]*domain.AuditEntry, int64, error)
}

// EventPublisher announces finished scans
type EventPublisher interface {
	PublishScanCompleted(ctx context.Context, job *domain.ScanJob, durationMs int64)
	PublishScanFailed(ctx context.Context, job *domain.ScanJob, durationMs int64)
}

// Option configures optional collaborators of the service
type Option func(*Service)

// WithAuditStore enables the audit trail
func WithAuditStore(audit AuditStore) Option {
	return func(s *Service) { s.audit = audit }
}

// WithEvents enables scan event publishing
func WithEvents(events EventPublisher) Option {
	return func(s *Service) { s.events = events }
}

// Service orchestrates MRZ scans: dispatch to processors, discard the
// payload, then record and announce the result.
type Service struct {
	registry *processor.Registry
	storage  *storage.TempStorage
	audit    AuditStore
	events   EventPublisher
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewService creates a new scan service
func NewService(registry *processor.Registry, store *storage.TempStorage, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		storage:  store,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuditEnabled reports whether scans are recorded
func (s *Service) AuditEnabled() bool {
	return s.audit != nil
}

// Parse extracts the MRZ from text synchronously
func (s *Service) Parse(ctx context.Context, text string) (*domain.ScanOutcome, error) {
	proc := s.registry.FindProcessor(domain.InputText)
	if proc == nil {
		return nil, apperrors.Internal("no text processor registered")
	}

	outcome, err := proc.Process(ctx, []byte(text), domain.InputText)
	if err != nil {
		if errors.Is(err, processor.ErrNoMRZ) {
			return nil, apperrors.Unprocessable("no MRZ found in text")
		}
		return nil, fmt.Errorf("failed to parse text: %w", err)
	}
	return outcome, nil
}

// StartScan creates a scan job and processes the payload asynchronously.
// It returns the job immediately so the caller can poll for the result.
// The payload is zeroed once processing ends; the caller must not reuse it.
func (s *Service) StartScan(ctx context.Context, data []byte, kind domain.InputKind) (*domain.ScanJob, error) {
	if !kind.Valid() {
		storage.ZeroBytes(data)
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported input kind: %s", kind))
	}
	if len(data) == 0 {
		return nil, apperrors.BadRequest("empty payload")
	}

	job := &domain.ScanJob{
		JobID:     storage.GenerateJobID(),
		Status:    domain.StatusProcessing,
		InputKind: kind,
		Subject:   httputil.GetSubject(ctx),
		CreatedAt: time.Now(),
	}
	s.storage.StoreJob(job)

	processors := s.registry.FindProcessors(kind)
	if len(processors) == 0 {
		storage.ZeroBytes(data)
		s.storage.UpdateJob(job.JobID, func(j *domain.ScanJob) {
			now := time.Now()
			j.Status = domain.StatusFailed
			j.Error = fmt.Sprintf("no processor available for input kind: %s", kind)
			j.CompletedAt = &now
		})
		return s.storage.GetJob(job.JobID), nil
	}

	// Detach from the request so its cancellation does not abort the scan
	bgCtx := messaging.WithCorrelationID(context.WithoutCancel(ctx), httputil.GetRequestID(ctx))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processAsync(bgCtx, job.JobID, data, kind, processors)
	}()

	return s.storage.GetJob(job.JobID), nil
}

// processAsync runs the processors in order until one finds an MRZ
func (s *Service) processAsync(ctx context.Context, jobID string, data []byte, kind domain.InputKind, processors []processor.Processor) {
	log := s.log.WithJobID(jobID)
	start := time.Now()

	var outcome *domain.ScanOutcome
	var lastErr error
	for _, proc := range processors {
		log.Debug().
			Str("processor", proc.Name()).
			Str("input_kind", string(kind)).
			Msg("trying MRZ extraction")

		outcome, lastErr = proc.Process(ctx, data, kind)
		if lastErr == nil {
			break
		}
		log.Debug().Err(lastErr).Str("processor", proc.Name()).Msg("processor failed, trying next")
	}

	storage.ZeroBytes(data)
	discardedAt := time.Now()
	durationMs := discardedAt.Sub(start).Milliseconds()

	s.storage.UpdateJob(jobID, func(j *domain.ScanJob) {
		j.CompletedAt = &discardedAt
		if lastErr != nil {
			j.Status = domain.StatusFailed
			j.Error = lastErr.Error()
			return
		}
		j.Status = domain.StatusCompleted
		j.Result = outcome
	})

	job := s.storage.GetJob(jobID)
	if job == nil {
		log.Warn().Msg("scan job expired before completion")
		return
	}

	if lastErr != nil {
		log.Warn().Err(lastErr).Int64("duration_ms", durationMs).Msg("MRZ scan failed")
		s.publishFailed(ctx, job, durationMs)
	} else {
		log.Info().
			Str("processor", outcome.Processor).
			Str("format", outcome.MRZ.Format.String()).
			Bool("all_check_digits_valid", outcome.MRZ.AllCheckDigitsValid).
			Int64("duration_ms", durationMs).
			Msg("MRZ scan completed")
		s.publishCompleted(ctx, job, durationMs)
	}

	s.writeAudit(ctx, job, discardedAt, durationMs)
}

func (s *Service) publishCompleted(ctx context.Context, job *domain.ScanJob, durationMs int64) {
	if s.events != nil {
		s.events.PublishScanCompleted(ctx, job, durationMs)
	}
}

func (s *Service) publishFailed(ctx context.Context, job *domain.ScanJob, durationMs int64) {
	if s.events != nil {
		s.events.PublishScanFailed(ctx, job, durationMs)
	}
}

// writeAudit records the finished scan. Failures are logged, never surfaced
// to the job.
func (s *Service) writeAudit(ctx context.Context, job *domain.ScanJob, discardedAt time.Time, durationMs int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, domain.NewAuditEntry(job, discardedAt, durationMs)); err != nil {
		s.log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to write scan audit entry")
	}
}

// GetJob retrieves a scan job by ID. An authenticated caller only sees its
// own jobs; any other job reads as not found.
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.ScanJob, error) {
	job := s.storage.GetJob(jobID)
	if job == nil {
		return nil, apperrors.NotFound("scan job")
	}
	if caller := httputil.GetSubject(ctx); caller != "" && caller != job.Subject {
		return nil, apperrors.NotFound("scan job")
	}
	return job, nil
}

// ListAudit lists recorded scans, newest first
func (s *Service) ListAudit(ctx context.Context, filter *repository.ListFilter, page, perPage int) ([]*domain.AuditEntry, int64, error) {
	if s.audit == nil {
		return nil, 0, apperrors.New("AUDIT_DISABLED", "scan audit trail is not enabled", http.StatusNotFound)
	}
	return s.audit.List(ctx, filter, page, perPage)
}

// Wait blocks until all running scans have finished
func (s *Service) Wait() {
	s.wg.Wait()
}
