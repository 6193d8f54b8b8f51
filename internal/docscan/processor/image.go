package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/internal/ocr"
	"github.com/idcheck/mrzscan/internal/scanner"
	"github.com/idcheck/mrzscan/internal/vision"
)

// maxPixels bounds decoded uploads. A 40 MP photo is well above any
// document camera.
const maxPixels = 40_000_000

// decodeImage decodes a PNG or JPEG payload, checking its dimensions first
func decodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// ImageProcessor runs the frame pipeline over a document photo: text line
// detection, MRZ region selection, pre-processing and OCR.
type ImageProcessor struct {
	frames scanner.FrameProcessor
}

// NewImageProcessor creates an image processor on top of a frame pipeline
func NewImageProcessor(frames scanner.FrameProcessor) *ImageProcessor {
	return &ImageProcessor{frames: frames}
}

func (p *ImageProcessor) Name() string {
	return "mrz_image"
}

func (p *ImageProcessor) CanProcess(kind domain.InputKind) bool {
	return kind == domain.InputImage
}

func (p *ImageProcessor) Process(ctx context.Context, data []byte, kind domain.InputKind) (*domain.ScanOutcome, error) {
	start := time.Now()

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	res, ok := p.frames.ProcessFrame(ctx, scanner.Frame{Image: img, CapturedAt: start})
	if !ok {
		return nil, ErrNoMRZ
	}

	outcome := &domain.ScanOutcome{
		Processor:        p.Name(),
		MRZ:              res.MRZ,
		Region:           domain.RegionFromRect(res.Region),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	checkWarnings(outcome)
	return outcome, nil
}

// CroppedImageProcessor handles uploads that already show only the MRZ,
// such as crops made by a client-side detector. It skips region detection
// and recognizes the whole pre-processed image.
type CroppedImageProcessor struct {
	recognizer ocr.Recognizer
	parser     *mrz.Parser
}

// NewCroppedImageProcessor creates a processor for pre-cropped MRZ images
func NewCroppedImageProcessor(recognizer ocr.Recognizer, parser *mrz.Parser) *CroppedImageProcessor {
	if parser == nil {
		parser = mrz.NewParser()
	}
	return &CroppedImageProcessor{recognizer: recognizer, parser: parser}
}

func (p *CroppedImageProcessor) Name() string {
	return "mrz_image_cropped"
}

func (p *CroppedImageProcessor) CanProcess(kind domain.InputKind) bool {
	return kind == domain.InputImage
}

func (p *CroppedImageProcessor) Process(ctx context.Context, data []byte, kind domain.InputKind) (*domain.ScanOutcome, error) {
	start := time.Now()

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	prepared := vision.Preprocess(img, vision.AverageLuminance(img))
	text, err := p.recognizer.Recognize(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	result, ok := p.parser.ParseText(text)
	if !ok {
		return nil, ErrNoMRZ
	}

	outcome := &domain.ScanOutcome{
		Processor:        p.Name(),
		MRZ:              result,
		Region:           domain.RegionFromRect(img.Bounds()),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	checkWarnings(outcome)
	return outcome, nil
}
