// Package registry owns the process-wide state: the runtime settings, the
// facade and the capture listeners. It is built once at startup, in that
// order, and passed by reference to the components that need it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"clip-translator/src/capture"
	"clip-translator/src/clipboard"
	"clip-translator/src/config"
	"clip-translator/src/facade"
	"clip-translator/src/hook"
	"clip-translator/src/hotkey"
	"clip-translator/src/llm"
	"clip-translator/src/ocr"
	"clip-translator/src/screenshot"
	"clip-translator/src/translate"
)

// DefaultPollInterval is used when the config leaves PollInterval unset.
const DefaultPollInterval = 500 * time.Millisecond

var (
	ErrClosed        = errors.New("registry closed")
	ErrMisconfigured = errors.New("registry misconfigured")
)

// Clipboard is the clipboard access shared by the capture sources and the
// delivery targets.
type Clipboard interface {
	capture.ClipboardReader
	WriteText(text string) error
}

// InputHub delivers global input events. *hook.Hub satisfies it.
type InputHub interface {
	Subscribe(fn hook.Handler) func()
	Start() error
	Stop()
}

type Options struct {
	Config *config.Config
	// Backends defaults to the set built from Config.
	Backends facade.Translator
	// Recognizer defaults to the OpenRouter vision model when an API key is configured.
	Recognizer ocr.Recognizer
	Clipboard  Clipboard
	// ClipboardUnavailable starts the clipboard and drag listeners disabled.
	ClipboardUnavailable bool
	// Hub is optional; without it the drag and hotkey sources never fire.
	Hub      InputHub
	Dispatch facade.Dispatcher
	// Capture and Pointer default to the screenshot package and robotgo.
	Capture func(image.Point) ([]byte, error)
	Pointer func() image.Point
	// CopySelection overrides the drag source copy keystroke.
	CopySelection func() error
	Logger        *zap.Logger
}

// Registry implements the controller used by the event loop: every setter
// updates the settings and, for listener toggles, the listener state.
type Registry struct {
	mu        sync.Mutex
	closed    bool
	started   bool
	cancel    context.CancelFunc
	settings  *config.Settings
	facade    *facade.Facade
	clip      Clipboard
	seen      *capture.Seen
	hub       InputHub
	unsub     []func()
	clipboard *capture.Listener
	drag      *capture.Listener
	hotkey    *capture.Listener
	logger    *zap.Logger
}

// New wires settings, then the facade, then the listeners. Nothing runs until Start.
func New(opts Options) (*Registry, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrMisconfigured)
	}
	if opts.Clipboard == nil {
		return nil, fmt.Errorf("%w: clipboard is required", ErrMisconfigured)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config

	settings, err := config.NewSettings(cfg.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMisconfigured, err)
	}

	backends := opts.Backends
	if backends == nil {
		backends = NewBackends(cfg, logger)
	}
	recognizer := opts.Recognizer
	if recognizer == nil && cfg.APIKey != "" {
		recognizer = NewRecognizer(cfg, logger)
	}
	f, err := facade.New(facade.Options{
		Settings:   settings,
		Backends:   backends,
		Recognizer: recognizer,
		Dispatch:   opts.Dispatch,
		Timeout:    cfg.TranslateTimeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMisconfigured, err)
	}

	r := &Registry{
		settings: settings,
		facade:   f,
		clip:     opts.Clipboard,
		seen:     &capture.Seen{},
		hub:      opts.Hub,
		logger:   logger.Named("registry"),
	}

	if opts.ClipboardUnavailable {
		settings.SetClipboardListener(false)
		settings.SetDragCopy(false)
		r.logger.Warn("clipboard unavailable, clipboard and drag capture disabled")
	}
	snap := settings.Snapshot()
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	r.clipboard = capture.NewListener(capture.NewClipboardSource(opts.Clipboard, r.seen), f, interval, snap.ClipboardListener, logger)

	var dragOpts []capture.DragOption
	if cfg.DragThreshold > 0 {
		dragOpts = append(dragOpts, capture.WithDragThreshold(cfg.DragThreshold))
	}
	if opts.CopySelection != nil {
		dragOpts = append(dragOpts, capture.WithCopyFunc(opts.CopySelection))
	}
	drag := capture.NewDragSource(opts.Clipboard, r.seen, dragOpts...)
	r.drag = capture.NewListener(drag, f, interval, snap.DragCopy, logger)

	var hotkeySrc *capture.HotkeySource
	if m, err := hotkey.NewMatcher(cfg.Hotkey); err != nil {
		r.logger.Warn("screen capture hotkey disabled", zap.String("hotkey", cfg.Hotkey), zap.Error(err))
	} else {
		captureFn := opts.Capture
		if captureFn == nil {
			w, h := cfg.CaptureWidth, cfg.CaptureHeight
			captureFn = func(p image.Point) ([]byte, error) { return screenshot.CaptureAround(p, w, h) }
		}
		pointer := opts.Pointer
		if pointer == nil {
			pointer = capture.Pointer
		}
		hotkeySrc = capture.NewHotkeySource(m, captureFn, pointer)
		// The hotkey is an explicit request, so it is always enabled.
		r.hotkey = capture.NewListener(hotkeySrc, f, interval, true, logger)
	}

	if r.hub != nil {
		r.unsub = append(r.unsub, r.hub.Subscribe(drag.HandleEvent))
		if hotkeySrc != nil {
			r.unsub = append(r.unsub, r.hub.Subscribe(hotkeySrc.HandleEvent))
		}
	}
	return r, nil
}

// NewBackends builds the four translation backends from cfg. Backends missing
// credentials are still registered and fail with ErrMissingCredentials.
func NewBackends(cfg *config.Config, logger *zap.Logger) *translate.Set {
	hc := translate.NewHTTPClient(cfg.TranslateTimeout)
	set := translate.NewSet(map[translate.Kind]translate.Backend{
		translate.Google:     translate.NewGoogleBackend(hc),
		translate.Baidu:      translate.NewBaiduBackend(cfg.BaiduAppID, cfg.BaiduSecretKey, hc),
		translate.Youdao:     translate.NewYoudaoBackend(cfg.YoudaoAppKey, cfg.YoudaoAppSecret, hc),
		translate.OpenRouter: translate.NewOpenRouterBackend(newLLM(cfg, cfg.Model, logger)),
	})
	var kinds []string
	for _, k := range set.Registered() {
		kinds = append(kinds, k.String())
	}
	logger.Debug("backends registered", zap.Strings("backends", kinds))
	return set
}

// NewRecognizer returns the LLM vision recognizer configured by cfg.
func NewRecognizer(cfg *config.Config, logger *zap.Logger) *ocr.LLMRecognizer {
	return ocr.NewLLMRecognizer(newLLM(cfg, cfg.OCRModel, logger), logger)
}

func newLLM(cfg *config.Config, model string, logger *zap.Logger) *llm.Client {
	c := llm.New(llm.Config{
		APIKey:    cfg.APIKey,
		Model:     model,
		Providers: cfg.Providers,
		Logger:    logger,
	})
	logger.Debug("llm client configured", zap.String("model", c.Model()), zap.Strings("providers", cfg.Providers))
	return c
}

// Start starts the input hub and the listener goroutines.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.started {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	if r.hub != nil {
		if err := r.hub.Start(); err != nil {
			// Clipboard capture still works without global input.
			r.logger.Warn("input hook unavailable", zap.Error(err))
		}
	}
	for _, l := range r.listeners() {
		if err := l.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("start %s listener: %w", l.Name(), err)
		}
	}
	r.cancel = cancel
	r.started = true
	r.logger.Info("listeners started", zap.Int("count", len(r.listeners())))
	return nil
}

// Close stops every listener before dropping the settings and facade. It is
// safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	listeners, unsub, hub, cancel := r.listeners(), r.unsub, r.hub, r.cancel
	r.mu.Unlock()

	// Stop waits for in-flight deliveries, which may call back into the
	// registry, so r.mu must not be held here.
	for _, l := range listeners {
		l.Stop()
	}
	for _, fn := range unsub {
		fn()
	}
	if hub != nil {
		hub.Stop()
	}
	if cancel != nil {
		cancel()
	}

	r.mu.Lock()
	f := r.facade
	r.clipboard, r.drag, r.hotkey = nil, nil, nil
	r.unsub = nil
	r.facade = nil
	r.settings = nil
	r.mu.Unlock()

	f.SetFacadeListener(nil)
	f.SetErrorListener(nil)
	r.logger.Info("registry closed")
}

func (r *Registry) listeners() []*capture.Listener {
	var out []*capture.Listener
	for _, l := range []*capture.Listener{r.clipboard, r.drag, r.hotkey} {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Settings returns the shared runtime settings, or nil after Close.
func (r *Registry) Settings() *config.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Facade returns the shared facade, or nil after Close.
func (r *Registry) Facade() *facade.Facade {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.facade
}

// ClipboardWriter writes text to the clipboard and marks it as seen so the
// capture sources do not translate the app's own output.
func (r *Registry) ClipboardWriter() ClipboardWriterFunc {
	return func(text string) error {
		r.seen.MarkText(text)
		return r.clip.WriteText(text)
	}
}

// ClipboardWriterFunc adapts a function to eventloop.ClipboardWriter.
type ClipboardWriterFunc func(text string) error

func (fn ClipboardWriterFunc) WriteText(text string) error { return fn(text) }

func (r *Registry) live() (*config.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.settings, nil
}

func (r *Registry) SetCurrentTranslator(k translate.Kind) error {
	s, err := r.live()
	if err != nil {
		return err
	}
	if err := s.SetCurrentTranslator(k); err != nil {
		return err
	}
	r.logger.Info("backend selected", zap.Stringer("backend", k))
	return nil
}

func (r *Registry) SetSourceLanguage(l translate.Language) error {
	s, err := r.live()
	if err != nil {
		return err
	}
	return s.SetSourceLanguage(l)
}

func (r *Registry) SetDestLanguage(l translate.Language) error {
	s, err := r.live()
	if err != nil {
		return err
	}
	return s.SetDestLanguage(l)
}

func (r *Registry) SetClipboardListener(on bool) {
	r.toggle(func(s *config.Settings) { s.SetClipboardListener(on) }, func() *capture.Listener { return r.clipboard }, on)
}

func (r *Registry) SetDragCopy(on bool) {
	r.toggle(func(s *config.Settings) { s.SetDragCopy(on) }, func() *capture.Listener { return r.drag }, on)
}

func (r *Registry) SetKeepParagraph(on bool) {
	if s, err := r.live(); err == nil {
		s.SetKeepParagraph(on)
	}
}

func (r *Registry) SetKeepOnTop(on bool) {
	if s, err := r.live(); err == nil {
		s.SetKeepOnTop(on)
	}
}

func (r *Registry) SetIncrementalCopy(on bool) {
	s, err := r.live()
	if err != nil {
		return
	}
	s.SetIncrementalCopy(on)
	if f := r.Facade(); !on && f != nil {
		f.ResetIncremental()
	}
}

func (r *Registry) toggle(set func(*config.Settings), listener func() *capture.Listener, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	set(r.settings)
	if l := listener(); l != nil {
		l.SetEnabled(on)
	}
}

// Translate runs a job with the current settings without notifying listeners.
func (r *Registry) Translate(ctx context.Context, text string) (facade.Completion, error) {
	f := r.Facade()
	if f == nil {
		return facade.Completion{}, ErrClosed
	}
	return f.Translate(ctx, text)
}

// SystemClipboard is the default Clipboard.
func SystemClipboard() Clipboard { return clipboard.New() }
