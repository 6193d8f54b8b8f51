package processor

import (
	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/internal/ocr"
	"github.com/idcheck/mrzscan/internal/scanner"
	"github.com/idcheck/mrzscan/pkg/logger"
)

// NewDefaultRegistry registers the text processor and, when an OCR engine
// is available, the region-based image processor followed by the
// whole-image fallback. A nil engine leaves image scans without a processor.
func NewDefaultRegistry(engine ocr.Engine, parser *mrz.Parser, log *logger.Logger) *Registry {
	if parser == nil {
		parser = mrz.NewParser()
	}

	processors := []Processor{NewTextProcessor(parser)}
	if engine != nil {
		processors = append(processors,
			NewImageProcessor(scanner.NewPipeline(engine, engine, parser, log)),
			NewCroppedImageProcessor(engine, parser),
		)
	}
	return NewRegistry(processors...)
}
