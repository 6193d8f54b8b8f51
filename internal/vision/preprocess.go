package vision

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	defaultBias = 0.5
	brightLum   = 0.8
	darkLum     = 0.35
	upscale     = 2
)

// AverageLuminance returns the mean Rec. 709 luma of img in the range 0-1.
// An empty image has luminance 0.
func AverageLuminance(img image.Image) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n <= 0 {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += luma(img, x, y)
		}
	}
	return sum / float64(n)
}

func luma(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 0xffff
}

// ExposureBias returns the exposure adjustment, in EV, for a crop with the
// given average luminance. Normal crops get +0.5 EV; bright crops are pulled
// down linearly and dark crops are pushed up exponentially.
func ExposureBias(lum float64) float64 {
	switch {
	case lum > brightLum:
		return defaultBias - 12.5*(lum-brightLum)
	case lum < darkLum:
		return defaultBias * math.Exp(4*(darkLum-lum))
	default:
		return defaultBias
	}
}

// Threshold returns the binarization cut-off for a crop with the given
// average luminance. Pixels at or above it become white.
func Threshold(lum float64) float64 {
	lum = clamp01(lum)
	return 1 - math.Pow(1-lum, 0.2)
}

// Preprocess prepares an MRZ crop for OCR: exposure correction, a 2x
// Catmull-Rom upscale and binarization, all driven by the crop's average
// luminance. The result is an *image.Gray holding only black and white
// pixels. When the crop cannot be processed the input is returned unchanged.
func Preprocess(img image.Image, lum float64) image.Image {
	if img == nil {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || w > math.MaxInt32/upscale || h > math.MaxInt32/upscale {
		return img
	}

	gain := math.Exp2(ExposureBias(lum))
	exposed := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := exposed.Pix[y*exposed.Stride:]
		for x := 0; x < w; x++ {
			v := clamp01(luma(img, b.Min.X+x, b.Min.Y+y) * gain)
			row[x] = uint8(math.Round(v * 255))
		}
	}

	scaled := image.NewGray(image.Rect(0, 0, w*upscale, h*upscale))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), exposed, exposed.Bounds(), xdraw.Src, nil)

	t := Threshold(lum)
	for i, p := range scaled.Pix {
		if float64(p)/255 >= t {
			scaled.Pix[i] = 0xff
		} else {
			scaled.Pix[i] = 0
		}
	}
	return scaled
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
