// Package vision holds the image-side policy of the MRZ pipeline: choosing
// the MRZ region from detected text lines and preparing the crop for OCR.
package vision

import (
	"image"
	"image/draw"
	"math"
)

const (
	// minLineWidth is the fraction, in tenths, of the frame width a text
	// line must exceed to count as part of the MRZ.
	minLineWidth = 8
	// maxRegionHeight is the fraction, in tenths, of the frame height the
	// MRZ region may cover. A region of exactly this height is accepted.
	maxRegionHeight = 4
)

// LocateRegion picks the MRZ region from text-line boxes detected in a frame
// with the given bounds. Only lines wider than 80% of the frame are kept;
// their union is the region. It reports false when no line qualifies or the
// union is taller than 40% of the frame.
func LocateRegion(boxes []image.Rectangle, bounds image.Rectangle) (image.Rectangle, bool) {
	if bounds.Empty() {
		return image.Rectangle{}, false
	}

	var region image.Rectangle
	found := false
	for _, b := range boxes {
		b = b.Canon()
		if b.Dx()*10 <= bounds.Dx()*minLineWidth {
			continue
		}
		if !found {
			region, found = b, true
			continue
		}
		region = region.Union(b)
	}
	if !found {
		return image.Rectangle{}, false
	}
	if region.Dy()*10 > bounds.Dy()*maxRegionHeight {
		return image.Rectangle{}, false
	}

	region = region.Intersect(bounds)
	if region.Empty() {
		return image.Rectangle{}, false
	}
	return region, true
}

// Crop returns a copy of the part of img inside r. The result does not share
// pixels with img, so the frame buffer can be reused by the caller.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// NormalizedBox is a detector rectangle in 0-1 coordinates relative to the
// frame.
type NormalizedBox struct {
	X, Y, Width, Height float64
}

// ToPixels converts the box to pixel coordinates inside bounds. With flipY
// the box origin is taken as bottom-left, as reported by most vision
// frameworks.
func (b NormalizedBox) ToPixels(bounds image.Rectangle, flipY bool) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	y := b.Y
	if flipY {
		y = 1 - b.Y - b.Height
	}

	px := func(v, size float64) int { return int(math.Round(v * size)) }
	r := image.Rect(
		bounds.Min.X+px(b.X, w),
		bounds.Min.Y+px(y, h),
		bounds.Min.X+px(b.X+b.Width, w),
		bounds.Min.Y+px(y+b.Height, h),
	)
	return r.Intersect(bounds)
}
