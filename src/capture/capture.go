// Package capture runs the input listener threads. Each Listener owns one
// Source and a polling goroutine; what a Source detects is handed to a Sink.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"clip-translator/src/logutil"
)

var ErrAlreadyStarted = errors.New("listener already started")

type Kind int

const (
	TextCaptured Kind = iota
	ImageCaptured
)

func (k Kind) String() string {
	switch k {
	case TextCaptured:
		return "text"
	case ImageCaptured:
		return "image"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one captured input. Text is set for TextCaptured, Image (PNG) for
// ImageCaptured.
type Event struct {
	Kind  Kind
	Text  string
	Image []byte
}

func Text(s string) Event    { return Event{Kind: TextCaptured, Text: s} }
func Image(png []byte) Event { return Event{Kind: ImageCaptured, Image: png} }

// Sink receives captured input. The translator facade implements it.
type Sink interface {
	OnTextInput(ctx context.Context, text string)
	OnImageInput(ctx context.Context, png []byte) error
}

// Source is polled by a Listener. Poll reports ok=false when nothing new was
// detected. A source records what it emits as seen before returning it.
type Source interface {
	Name() string
	Poll(ctx context.Context) (ev Event, ok bool, err error)
}

// Resetter is implemented by sources that need to drop state when their
// listener goes from disabled to enabled.
type Resetter interface {
	Reset()
}

type Listener struct {
	src      Source
	sink     Sink
	interval time.Duration
	logger   *zap.Logger
	enabled  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// lastErr is the last logged poll error; owned by the run goroutine.
	lastErr string
}

func NewListener(src Source, sink Sink, interval time.Duration, enabled bool, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Listener{
		src:      src,
		sink:     sink,
		interval: interval,
		logger:   logger.Named("capture").With(zap.String("source", src.Name())),
	}
	l.enabled.Store(enabled)
	return l
}

func (l *Listener) Name() string { return l.src.Name() }

// SetEnabled takes effect at the top of the next poll iteration. It never
// waits for a poll or a translation already in flight.
func (l *Listener) SetEnabled(on bool) {
	if l.enabled.Swap(on) != on {
		l.logger.Info("listener toggled", zap.Bool("enabled", on))
	}
}

func (l *Listener) Enabled() bool { return l.enabled.Load() }

// Start launches the polling goroutine. It runs until ctx is done or Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	l.logger.Debug("listener started", zap.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	armed := false
	for {
		armed = l.pollOnce(ctx, armed)
		select {
		case <-ctx.Done():
			l.logger.Debug("listener stopped")
			return
		case <-ticker.C:
		}
	}
}

// pollOnce runs one iteration and returns whether the source is armed, i.e.
// has been reset since the listener was last enabled.
func (l *Listener) pollOnce(ctx context.Context, armed bool) bool {
	if !l.enabled.Load() {
		return false
	}
	if !armed {
		if r, ok := l.src.(Resetter); ok {
			r.Reset()
		}
	}

	ev, ok, err := l.safePoll(ctx)
	if err != nil {
		// A source that stays broken fails the same way every interval.
		if msg := err.Error(); msg != l.lastErr {
			l.lastErr = msg
			l.logger.Warn("poll failed", zap.Error(err))
		}
		return true
	}
	if l.lastErr != "" {
		l.lastErr = ""
		l.logger.Info("poll recovered")
	}
	if !ok || !l.enabled.Load() {
		return true
	}
	l.deliver(ctx, ev)
	return true
}

func (l *Listener) safePoll(ctx context.Context) (ev Event, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in poll: %v", r)
		}
	}()
	return l.src.Poll(ctx)
}

func (l *Listener) deliver(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic while delivering capture", zap.Any("panic", r))
		}
	}()

	switch ev.Kind {
	case TextCaptured:
		l.logger.Debug("text captured", zap.String("text", logutil.Sanitize(ev.Text)))
		l.sink.OnTextInput(ctx, ev.Text)
	case ImageCaptured:
		l.logger.Debug("image captured", zap.Int("bytes", len(ev.Image)))
		if err := l.sink.OnImageInput(ctx, ev.Image); err != nil {
			l.logger.Warn("image input failed", zap.Error(err))
		}
	}
}
