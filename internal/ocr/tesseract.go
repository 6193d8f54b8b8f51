//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Engine on top of libtesseract. Build with
//
//	go build -tags tesseract
//
// Calls are serialised; a tesseract handle is not safe for concurrent use.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract engine restricted to the MRZ character set.
func NewTesseract(cfg Config) (*Tesseract, error) {
	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		client.TessdataPrefix = cfg.TessdataPrefix
	}

	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: set language: %v", ErrEngineUnavailable, err)
	}
	if err := client.SetWhitelist(MRZCharset); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: set whitelist: %v", ErrEngineUnavailable, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: set page segmentation: %v", ErrEngineUnavailable, err)
	}
	return &Tesseract{client: client}, nil
}

// DetectText returns the bounding boxes of the text lines in img.
func (t *Tesseract) DetectText(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("text lines: %w", err)
	}

	// tesseract reports boxes relative to the encoded image origin
	origin := img.Bounds().Min
	rects := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		rects = append(rects, b.Box.Add(origin))
	}
	return rects, nil
}

// Recognize returns the text in img.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

// Close releases the tesseract handle.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
