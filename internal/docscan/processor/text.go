package processor

import (
	"context"
	"time"

	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/internal/mrz"
)

// TextProcessor parses MRZ text, as typed by an operator or read by an
// external OCR engine.
type TextProcessor struct {
	parser *mrz.Parser
}

// NewTextProcessor creates a text processor. A nil parser uses the defaults.
func NewTextProcessor(parser *mrz.Parser) *TextProcessor {
	if parser == nil {
		parser = mrz.NewParser()
	}
	return &TextProcessor{parser: parser}
}

func (p *TextProcessor) Name() string {
	return "mrz_text"
}

func (p *TextProcessor) CanProcess(kind domain.InputKind) bool {
	return kind == domain.InputText
}

func (p *TextProcessor) Process(ctx context.Context, data []byte, kind domain.InputKind) (*domain.ScanOutcome, error) {
	start := time.Now()

	result, ok := p.parser.ParseText(string(data))
	if !ok {
		return nil, ErrNoMRZ
	}

	outcome := &domain.ScanOutcome{
		Processor:        p.Name(),
		MRZ:              result,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	checkWarnings(outcome)
	return outcome, nil
}
