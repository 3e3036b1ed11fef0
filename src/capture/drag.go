package capture

import (
	"context"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-vgo/robotgo"
	gohook "github.com/robotn/gohook"
)

const (
	defaultDragThreshold = 8
	defaultCopyDelay     = 150 * time.Millisecond
	leftButton           = 1
)

// CopySelection sends the platform copy shortcut to the focused window.
func CopySelection() error {
	mod := "ctrl"
	if runtime.GOOS == "darwin" {
		mod = "cmd"
	}
	return robotgo.KeyTap("c", mod)
}

// DragSource turns a left-button drag selection into clipboard text. The hook
// handler only arms the source; the copy and the clipboard read happen on the
// next poll, on the listener goroutine.
type DragSource struct {
	cb        ClipboardReader
	seen      *Seen
	copy      func() error
	delay     time.Duration
	threshold int

	mu       sync.Mutex
	pressed  bool
	dragging bool
	start    image.Point

	pending atomic.Bool
}

type DragOption func(*DragSource)

func WithCopyFunc(fn func() error) DragOption {
	return func(d *DragSource) { d.copy = fn }
}

func WithCopyDelay(delay time.Duration) DragOption {
	return func(d *DragSource) { d.delay = delay }
}

func WithDragThreshold(px int) DragOption {
	return func(d *DragSource) { d.threshold = px }
}

func NewDragSource(cb ClipboardReader, seen *Seen, opts ...DragOption) *DragSource {
	d := &DragSource{
		cb:        cb,
		seen:      seen,
		copy:      CopySelection,
		delay:     defaultCopyDelay,
		threshold: defaultDragThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DragSource) Name() string { return "drag" }

// Reset drops a drag completed while the listener was disabled.
func (d *DragSource) Reset() { d.pending.Store(false) }

// HandleEvent consumes mouse events from the input hook. gohook follows the
// libuiohook codes: MouseHold is the press, MouseDown the release and MouseUp
// the click that follows a release without movement.
func (d *DragSource) HandleEvent(ev gohook.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Kind {
	case gohook.MouseHold:
		if ev.Button == leftButton {
			d.pressed = true
			d.dragging = false
			d.start = image.Pt(int(ev.X), int(ev.Y))
		}
	case gohook.MouseDrag:
		if d.pressed && !d.dragging {
			p := image.Pt(int(ev.X), int(ev.Y))
			if abs(p.X-d.start.X) >= d.threshold || abs(p.Y-d.start.Y) >= d.threshold {
				d.dragging = true
			}
		}
	case gohook.MouseDown, gohook.MouseUp:
		if d.pressed && d.dragging {
			d.pending.Store(true)
		}
		d.pressed = false
		d.dragging = false
	}
}

func (d *DragSource) Poll(ctx context.Context) (Event, bool, error) {
	if !d.pending.CompareAndSwap(true, false) {
		return Event{}, false, nil
	}
	if err := d.copy(); err != nil {
		return Event{}, false, err
	}

	select {
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	case <-time.After(d.delay):
	}

	text, err := d.cb.Text()
	if err != nil {
		return Event{}, false, err
	}
	if text == "" || !d.seen.Swap(TextFingerprint(text)) {
		return Event{}, false, nil
	}
	return Text(text), true, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
