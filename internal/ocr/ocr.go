// Package ocr defines the boundary between the MRZ pipeline and the OCR
// engine. The pipeline only needs two things from an engine: the text lines
// found in a frame and the text of a cropped region.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
)

// MRZCharset is every character that can appear in a machine readable zone.
const MRZCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789<"

// ErrEngineUnavailable is returned when the binary was built without an OCR
// engine or the engine could not be initialised.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// TextDetector finds text lines in a frame and returns their bounding boxes
// in the frame's pixel coordinates.
type TextDetector interface {
	DetectText(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

// Recognizer reads the text in an image. Lines are separated by '\n'.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Engine is an OCR engine that can both detect and read text.
type Engine interface {
	TextDetector
	Recognizer
	io.Closer
}

// Config configures an OCR engine.
type Config struct {
	Language       string
	TessdataPrefix string
}

// encodePNG serialises img for engines that take encoded image bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
