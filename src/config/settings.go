package config

import (
	"fmt"
	"sync"

	"clip-translator/src/translate"
)

// Snapshot is one consistent view of the runtime Configuration.
type Snapshot struct {
	Translator        translate.Kind
	SourceLanguage    translate.Language
	DestLanguage      translate.Language
	ClipboardListener bool
	DragCopy          bool
	KeepParagraph     bool
	KeepOnTop         bool
	IncrementalCopy   bool
}

// Validate enforces the closed enumerations.
func (s Snapshot) Validate() error {
	if !s.Translator.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBackend, s.Translator)
	}
	if !s.SourceLanguage.Valid() {
		return fmt.Errorf("%w: source %s", ErrInvalidLanguage, s.SourceLanguage)
	}
	if !s.DestLanguage.Valid() || s.DestLanguage == translate.Auto {
		return fmt.Errorf("%w: destination %s", ErrInvalidLanguage, s.DestLanguage)
	}
	return nil
}

// Settings is the process-wide mutable Configuration. Every read returns a
// whole snapshot, so a reader sees either the old or the new value of each
// field and never a half-applied update.
type Settings struct {
	mu  sync.RWMutex
	cur Snapshot
}

// NewSettings validates initial and returns the shared instance.
func NewSettings(initial Snapshot) (*Settings, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Settings{cur: initial}, nil
}

func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Settings) CurrentTranslator() translate.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Translator
}

func (s *Settings) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
}

func (s *Settings) SetCurrentTranslator(k translate.Kind) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBackend, k)
	}
	s.update(func(c *Snapshot) { c.Translator = k })
	return nil
}

func (s *Settings) SetSourceLanguage(l translate.Language) error {
	if !l.Valid() {
		return fmt.Errorf("%w: source %s", ErrInvalidLanguage, l)
	}
	s.update(func(c *Snapshot) { c.SourceLanguage = l })
	return nil
}

func (s *Settings) SetDestLanguage(l translate.Language) error {
	if !l.Valid() || l == translate.Auto {
		return fmt.Errorf("%w: destination %s", ErrInvalidLanguage, l)
	}
	s.update(func(c *Snapshot) { c.DestLanguage = l })
	return nil
}

func (s *Settings) SetClipboardListener(on bool) {
	s.update(func(c *Snapshot) { c.ClipboardListener = on })
}

func (s *Settings) SetDragCopy(on bool) {
	s.update(func(c *Snapshot) { c.DragCopy = on })
}

func (s *Settings) SetKeepParagraph(on bool) {
	s.update(func(c *Snapshot) { c.KeepParagraph = on })
}

func (s *Settings) SetKeepOnTop(on bool) {
	s.update(func(c *Snapshot) { c.KeepOnTop = on })
}

func (s *Settings) SetIncrementalCopy(on bool) {
	s.update(func(c *Snapshot) { c.IncrementalCopy = on })
}
