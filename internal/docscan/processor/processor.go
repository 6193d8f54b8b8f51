package processor

import (
	"context"
	"errors"

	"github.com/idcheck/mrzscan/internal/docscan/domain"
)

var (
	// ErrNoMRZ is returned when a payload holds no readable MRZ
	ErrNoMRZ = errors.New("no MRZ found")
	// ErrUnsupportedImage is returned for payloads that are not a PNG or JPEG image
	ErrUnsupportedImage = errors.New("unsupported image")
)

// Processor defines the interface for MRZ extraction from one kind of input.
// Implementations can be swapped in without changing the service or
// handler layer.
type Processor interface {
	// CanProcess returns true if this processor handles the given input kind
	CanProcess(kind domain.InputKind) bool

	// Process extracts the MRZ from the payload.
	// The payload should NOT be retained after processing.
	Process(ctx context.Context, data []byte, kind domain.InputKind) (*domain.ScanOutcome, error)

	// Name returns the processor name for logging/audit
	Name() string
}

// Registry holds all registered processors and dispatches to the right one
type Registry struct {
	processors []Processor
}

// NewRegistry creates a new processor registry
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// FindProcessor returns the first processor that can handle the given input kind
func (r *Registry) FindProcessor(kind domain.InputKind) Processor {
	for _, p := range r.processors {
		if p.CanProcess(kind) {
			return p
		}
	}
	return nil
}

// FindProcessors returns all processors that can handle the given input kind,
// in registration order. This supports fallback: if the region-based image
// processor finds no MRZ, the full-image processor can still try.
func (r *Registry) FindProcessors(kind domain.InputKind) []Processor {
	var result []Processor
	for _, p := range r.processors {
		if p.CanProcess(kind) {
			result = append(result, p)
		}
	}
	return result
}

// checkWarnings lists the fields whose check digit did not match
func checkWarnings(outcome *domain.ScanOutcome) {
	for _, f := range outcome.MRZ.Fields {
		if f.Checked && !f.Valid {
			outcome.Warnings = append(outcome.Warnings, "check digit mismatch: "+f.Name)
		}
	}
}
