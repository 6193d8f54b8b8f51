package domain

import (
	"image"
	"time"

	"github.com/idcheck/mrzscan/internal/mrz"
)

// InputKind is the kind of payload submitted for scanning
type InputKind string

const (
	InputText  InputKind = "text"
	InputImage InputKind = "image"
)

// Valid reports whether k is a known input kind
func (k InputKind) Valid() bool {
	return k == InputText || k == InputImage
}

// ScanStatus represents the processing state of a scan job
type ScanStatus string

const (
	StatusProcessing ScanStatus = "processing"
	StatusCompleted  ScanStatus = "completed"
	StatusFailed     ScanStatus = "failed"
)

// Region is the MRZ area of a scanned image in pixel coordinates
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromRect converts an image rectangle
func RegionFromRect(r image.Rectangle) *Region {
	if r.Empty() {
		return nil
	}
	return &Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// ScanOutcome is the result of processing a single payload
type ScanOutcome struct {
	Processor        string     `json:"processor"`
	MRZ              mrz.Result `json:"mrz"`
	Region           *Region    `json:"region,omitempty"`
	Warnings         []string   `json:"warnings,omitempty"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
}

// ScanJob represents an asynchronous scan
type ScanJob struct {
	JobID       string       `json:"job_id"`
	Status      ScanStatus   `json:"status"`
	InputKind   InputKind    `json:"input_kind"`
	Result      *ScanOutcome `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	Subject     string       `json:"-"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Clone returns a deep enough copy for handing out of storage: the outcome
// is copied, the MRZ result inside is immutable.
func (j *ScanJob) Clone() *ScanJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.Result != nil {
		r := *j.Result
		r.Warnings = append([]string(nil), j.Result.Warnings...)
		c.Result = &r
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// AuditEntry records a scan for the audit trail. It never holds MRZ
// personal data: no names, numbers or dates.
type AuditEntry struct {
	ID                   string    `db:"id" json:"id"`
	JobID                string    `db:"job_id" json:"job_id"`
	InputKind            string    `db:"input_kind" json:"input_kind"`
	Status               string    `db:"status" json:"status"`
	Processor            string    `db:"processor" json:"processor"`
	Format               string    `db:"format" json:"format,omitempty"`
	DocumentCode         string    `db:"document_code" json:"document_code,omitempty"`
	IssuingState         string    `db:"issuing_state" json:"issuing_state,omitempty"`
	AllCheckDigitsValid  bool      `db:"all_check_digits_valid" json:"all_check_digits_valid"`
	ProcessingDurationMs int64     `db:"processing_duration_ms" json:"processing_duration_ms"`
	Subject              string    `db:"subject" json:"subject,omitempty"`
	InputDiscardedAt     time.Time `db:"input_discarded_at" json:"input_discarded_at"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// NewAuditEntry builds the audit record for a finished job
func NewAuditEntry(job *ScanJob, discardedAt time.Time, durationMs int64) *AuditEntry {
	entry := &AuditEntry{
		JobID:                job.JobID,
		InputKind:            string(job.InputKind),
		Status:               string(job.Status),
		ProcessingDurationMs: durationMs,
		Subject:              job.Subject,
		InputDiscardedAt:     discardedAt,
	}
	if job.Result != nil {
		entry.Processor = job.Result.Processor
		entry.Format = job.Result.MRZ.Format.String()
		entry.DocumentCode = job.Result.MRZ.DocumentCode
		entry.IssuingState = job.Result.MRZ.IssuingState
		entry.AllCheckDigitsValid = job.Result.MRZ.AllCheckDigitsValid
	}
	return entry
}
