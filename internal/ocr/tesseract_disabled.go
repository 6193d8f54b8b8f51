//go:build !tesseract

package ocr

import (
	"context"
	"image"
)

// Tesseract is unavailable in this build. Rebuild with -tags tesseract.
type Tesseract struct{}

// NewTesseract always fails with ErrEngineUnavailable.
func NewTesseract(Config) (*Tesseract, error) {
	return nil, ErrEngineUnavailable
}

func (*Tesseract) DetectText(context.Context, image.Image) ([]image.Rectangle, error) {
	return nil, ErrEngineUnavailable
}

func (*Tesseract) Recognize(context.Context, image.Image) (string, error) {
	return "", ErrEngineUnavailable
}

func (*Tesseract) Close() error { return nil }
