package capture

import (
	"context"
	"sync/atomic"
)

// ClipboardReader is the read side of the OS clipboard.
type ClipboardReader interface {
	Text() (string, error)
	Image() ([]byte, error)
}

// ClipboardSource detects new clipboard text, then new clipboard images. The
// first poll after (re)enabling only records the current content, so enabling
// the listener never translates whatever was already on the clipboard.
type ClipboardSource struct {
	cb       ClipboardReader
	seen     *Seen
	baseline atomic.Bool
}

func NewClipboardSource(cb ClipboardReader, seen *Seen) *ClipboardSource {
	s := &ClipboardSource{cb: cb, seen: seen}
	s.baseline.Store(true)
	return s
}

func (s *ClipboardSource) Name() string { return "clipboard" }

func (s *ClipboardSource) Reset() { s.baseline.Store(true) }

func (s *ClipboardSource) Poll(ctx context.Context) (Event, bool, error) {
	text, err := s.cb.Text()
	if err != nil {
		return Event{}, false, err
	}
	if text != "" {
		return s.observe(TextFingerprint(text), Text(text))
	}

	img, err := s.cb.Image()
	if err != nil {
		return Event{}, false, err
	}
	if len(img) > 0 {
		return s.observe(ImageFingerprint(img), Image(img))
	}
	return Event{}, false, nil
}

func (s *ClipboardSource) observe(fp Fingerprint, ev Event) (Event, bool, error) {
	if s.baseline.Swap(false) {
		s.seen.Mark(fp)
		return Event{}, false, nil
	}
	if !s.seen.Swap(fp) {
		return Event{}, false, nil
	}
	return ev, true, nil
}
