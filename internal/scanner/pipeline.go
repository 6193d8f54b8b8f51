// Package scanner runs the MRZ pipeline over camera frames: text detection,
// region selection, crop, pre-processing, OCR and parsing.
package scanner

import (
	"context"
	"image"
	"time"

	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/internal/ocr"
	"github.com/idcheck/mrzscan/internal/vision"
	"github.com/idcheck/mrzscan/pkg/logger"
)

// Frame is a single camera frame.
type Frame struct {
	Seq        uint64
	Image      image.Image
	CapturedAt time.Time
}

// ScanResult pairs a decoded MRZ with the cropped MRZ region it was read
// from. It is owned by the receiver after delivery.
type ScanResult struct {
	MRZ      mrz.Result
	Document image.Image
	Region   image.Rectangle
	Seq      uint64
}

// FrameProcessor turns a frame into a scan result.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frame Frame) (*ScanResult, bool)
}

// Pipeline is the synchronous, stateless frame pipeline. It is safe for
// concurrent use as long as its detector and recognizer are.
type Pipeline struct {
	detector   ocr.TextDetector
	recognizer ocr.Recognizer
	parser     *mrz.Parser
	log        *logger.Logger
}

// NewPipeline creates a pipeline. A nil parser uses mrz.NewParser defaults.
func NewPipeline(detector ocr.TextDetector, recognizer ocr.Recognizer, parser *mrz.Parser, log *logger.Logger) *Pipeline {
	if parser == nil {
		parser = mrz.NewParser()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		detector:   detector,
		recognizer: recognizer,
		parser:     parser,
		log:        log.WithComponent("scanner"),
	}
}

// ProcessFrame runs the pipeline on one frame. Every failing stage means
// "no MRZ in this frame"; the reason is logged at debug level.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) (*ScanResult, bool) {
	if frame.Image == nil {
		return nil, false
	}
	log := p.log.With().Uint64("frame", frame.Seq).Logger()
	bounds := frame.Image.Bounds()

	boxes, err := p.detector.DetectText(ctx, frame.Image)
	if err != nil {
		log.Debug().Err(err).Msg("text detection failed")
		return nil, false
	}

	region, ok := vision.LocateRegion(boxes, bounds)
	if !ok {
		log.Debug().Int("boxes", len(boxes)).Msg("no MRZ region")
		return nil, false
	}

	crop := vision.Crop(frame.Image, region)
	if crop == nil {
		return nil, false
	}
	lum := vision.AverageLuminance(crop)
	prepared := vision.Preprocess(crop, lum)

	text, err := p.recognizer.Recognize(ctx, prepared)
	if err != nil {
		log.Debug().Err(err).Msg("recognition failed")
		return nil, false
	}

	result, ok := p.parser.ParseText(text)
	if !ok {
		log.Debug().Msg("text is not an MRZ")
		return nil, false
	}

	log.Debug().
		Stringer("format", result.Format).
		Bool("valid", result.AllCheckDigitsValid).
		Float64("luminance", lum).
		Msg("MRZ decoded")

	return &ScanResult{
		MRZ:      result,
		Document: crop,
		Region:   region,
		Seq:      frame.Seq,
	}, true
}
