package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
)

var ErrNoDisplay = errors.New("no active displays found")

// CaptureAround grabs a width x height PNG centred on p, shifted as needed to
// stay on the display that contains p.
func CaptureAround(p image.Point, width, height int) ([]byte, error) {
	bounds, err := DisplayContaining(p)
	if err != nil {
		return nil, err
	}
	return CaptureRect(Around(p, width, height, bounds))
}

// CaptureRect captures r and encodes it as PNG.
func CaptureRect(r image.Rectangle) ([]byte, error) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Dx(), r.Dy())
	}

	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DisplayContaining returns the bounds of the display under p, falling back to
// the primary display when p is off-screen.
func DisplayContaining(p image.Point) (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	for i := 0; i < n; i++ {
		if b := screenshot.GetDisplayBounds(i); p.In(b) {
			return b, nil
		}
	}
	return screenshot.GetDisplayBounds(0), nil
}

// Around returns a width x height rectangle centred on p and moved inside
// bounds. It is clipped when bounds is smaller than the requested size.
func Around(p image.Point, width, height int, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(p.X-width/2, p.Y-height/2, p.X-width/2+width, p.Y-height/2+height)
	if r.Max.X > bounds.Max.X {
		r = r.Add(image.Pt(bounds.Max.X-r.Max.X, 0))
	}
	if r.Max.Y > bounds.Max.Y {
		r = r.Add(image.Pt(0, bounds.Max.Y-r.Max.Y))
	}
	if r.Min.X < bounds.Min.X {
		r = r.Add(image.Pt(bounds.Min.X-r.Min.X, 0))
	}
	if r.Min.Y < bounds.Min.Y {
		r = r.Add(image.Pt(0, bounds.Min.Y-r.Min.Y))
	}
	return r.Intersect(bounds)
}
