package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/pkg/database"
)

// Schema creates the scan audit table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS mrz_scan_audit (
	id UUID PRIMARY KEY,
	job_id VARCHAR(64) NOT NULL,
	input_kind VARCHAR(16) NOT NULL,
	status VARCHAR(16) NOT NULL,
	processor VARCHAR(64) NOT NULL DEFAULT '',
	format VARCHAR(16) NOT NULL DEFAULT '',
	document_code VARCHAR(2) NOT NULL DEFAULT '',
	issuing_state VARCHAR(3) NOT NULL DEFAULT '',
	all_check_digits_valid BOOLEAN NOT NULL DEFAULT FALSE,
	processing_duration_ms BIGINT NOT NULL DEFAULT 0,
	subject VARCHAR(255) NOT NULL DEFAULT '',
	input_discarded_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT mrz_scan_audit_job_id_key UNIQUE (job_id),
	CONSTRAINT mrz_scan_audit_input_kind_valid CHECK (input_kind IN ('text', 'image')),
	CONSTRAINT mrz_scan_audit_status_valid CHECK (status IN ('completed', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_mrz_scan_audit_created_at ON mrz_scan_audit (created_at DESC);
`

// AuditRepository handles scan audit persistence
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Migrate creates the audit table if it does not exist
func (r *AuditRepository) Migrate(ctx context.Context) error {
	if err := r.db.Migrate(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate audit table: %w", err)
	}
	return nil
}

// Create creates a new audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO mrz_scan_audit (id, job_id, input_kind, status, processor, format, document_code,
		                            issuing_state, all_check_digits_valid, processing_duration_ms, subject,
		                            input_discarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.ID,
		entry.JobID,
		entry.InputKind,
		entry.Status,
		entry.Processor,
		entry.Format,
		entry.DocumentCode,
		entry.IssuingState,
		entry.AllCheckDigitsValid,
		entry.ProcessingDurationMs,
		entry.Subject,
		entry.InputDiscardedAt,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListFilter contains filter options for audit entries
type ListFilter struct {
	Status string
	Format string
}

// List lists audit entries, newest first, with pagination and filtering
func (r *AuditRepository) List(ctx context.Context, filter *ListFilter, page, perPage int) ([]*domain.AuditEntry, int64, error) {
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.Status != "" {
			args = append(args, filter.Status)
			where = append(where, fmt.Sprintf("status = $%d", len(args)))
		}
		if filter.Format != "" {
			args = append(args, filter.Format)
			where = append(where, fmt.Sprintf("format = $%d", len(args)))
		}
	}

	conditions := ""
	if len(where) > 0 {
		conditions = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM mrz_scan_audit`+conditions, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	offset := (page - 1) * perPage
	query := `SELECT id, job_id, input_kind, status, processor, format, document_code, issuing_state,
		all_check_digits_valid, processing_duration_ms, subject, input_discarded_at, created_at
		FROM mrz_scan_audit` + conditions +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	entries := []*domain.AuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, total, nil
}
