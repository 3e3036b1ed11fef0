package capture

import (
	"crypto/sha256"
	"sync"
)

type Fingerprint [sha256.Size]byte

func TextFingerprint(s string) Fingerprint {
	return fingerprint('t', []byte(s))
}

func ImageFingerprint(png []byte) Fingerprint {
	return fingerprint('i', png)
}

func fingerprint(kind byte, data []byte) Fingerprint {
	h := sha256.New()
	h.Write([]byte{kind})
	h.Write(data)
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Seen is the last-seen clipboard content shared by every source that reads
// the clipboard, so one copy yields one emission.
type Seen struct {
	mu  sync.Mutex
	fp  Fingerprint
	set bool
}

// Swap records fp and reports whether it differs from the previous value.
func (s *Seen) Swap(fp Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.set || s.fp != fp
	s.fp, s.set = fp, true
	return changed
}

func (s *Seen) Mark(fp Fingerprint) {
	s.mu.Lock()
	s.fp, s.set = fp, true
	s.mu.Unlock()
}

// MarkText records text written to the clipboard by this process.
func (s *Seen) MarkText(text string) { s.Mark(TextFingerprint(text)) }
