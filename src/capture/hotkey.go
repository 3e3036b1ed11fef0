package capture

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/go-vgo/robotgo"
	gohook "github.com/robotn/gohook"

	"clip-translator/src/hotkey"
)

// Pointer returns the current mouse position.
func Pointer() image.Point {
	x, y := robotgo.Location()
	return image.Pt(x, y)
}

// HotkeySource captures the screen around the pointer when its hotkey is
// pressed and hands the image on for OCR.
type HotkeySource struct {
	matcher *hotkey.Matcher
	capture func(image.Point) ([]byte, error)
	pointer func() image.Point
	pending atomic.Bool
}

func NewHotkeySource(m *hotkey.Matcher, capture func(image.Point) ([]byte, error), pointer func() image.Point) *HotkeySource {
	if pointer == nil {
		pointer = Pointer
	}
	return &HotkeySource{matcher: m, capture: capture, pointer: pointer}
}

func (h *HotkeySource) Name() string { return "hotkey" }

func (h *HotkeySource) Reset() { h.pending.Store(false) }

func (h *HotkeySource) HandleEvent(ev gohook.Event) {
	if h.matcher.Feed(ev) {
		h.pending.Store(true)
	}
}

func (h *HotkeySource) Poll(ctx context.Context) (Event, bool, error) {
	if !h.pending.CompareAndSwap(true, false) {
		return Event{}, false, nil
	}
	png, err := h.capture(h.pointer())
	if err != nil {
		return Event{}, false, err
	}
	return Image(png), true, nil
}
