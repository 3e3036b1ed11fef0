package clipboard

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.design/x/clipboard"
)

// ErrUnavailable is returned when Init has not succeeded (headless session, no X server).
var ErrUnavailable = errors.New("clipboard unavailable")

var (
	writeMu sync.Mutex
	ready   atomic.Bool
)

func Init() error {
	if err := clipboard.Init(); err != nil {
		return err
	}
	ready.Store(true)
	return nil
}

// Available reports whether Init has succeeded.
func Available() bool { return ready.Load() }

// System is the OS clipboard. Reads are lock-free; writes are serialized.
type System struct{}

func New() System { return System{} }

// Text returns the current text content, or "" when none.
func (System) Text() (string, error) {
	if !ready.Load() {
		return "", ErrUnavailable
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// Image returns the current image content as PNG bytes, or nil when none.
func (System) Image() ([]byte, error) {
	if !ready.Load() {
		return nil, ErrUnavailable
	}
	return clipboard.Read(clipboard.FmtImage), nil
}

// WriteText performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func (System) WriteText(text string) error {
	if !ready.Load() {
		return ErrUnavailable
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
