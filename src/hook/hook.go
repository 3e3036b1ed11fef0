// Package hook owns the process-wide gohook event stream. gohook.Start is
// global, so every consumer (hotkey matching, drag detection) subscribes here
// instead of starting its own hook.
package hook

import (
	"errors"
	"sync"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("input hook unavailable")

type Handler func(gohook.Event)

type Hub struct {
	mu      sync.Mutex
	subs    map[int]Handler
	nextID  int
	running bool
	done    chan struct{}

	start  func() chan gohook.Event
	end    func()
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return newHub(gohook.Start, gohook.End, logger)
}

func newHub(start func() chan gohook.Event, end func(), logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[int]Handler), start: start, end: end, logger: logger.Named("hook")}
}

// Subscribe registers fn for every event and returns its cancel func.
func (h *Hub) Subscribe(fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Start begins delivering events. Calling it again while running is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	evChan := h.start()
	if evChan == nil {
		return ErrUnavailable
	}
	h.running = true
	h.done = make(chan struct{})
	go h.run(evChan, h.done)
	h.logger.Info("input hook started")
	return nil
}

func (h *Hub) run(evChan chan gohook.Event, done chan struct{}) {
	defer close(done)
	for ev := range evChan {
		h.dispatch(ev)
	}
	h.logger.Debug("event channel closed")
}

func (h *Hub) dispatch(ev gohook.Event) {
	h.mu.Lock()
	handlers := make([]Handler, 0, len(h.subs))
	for _, fn := range h.subs {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		h.safeCall(fn, ev)
	}
}

func (h *Hub) safeCall(fn Handler, ev gohook.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in hook handler", zap.Any("panic", r))
		}
	}()
	fn(ev)
}

// Stop ends the hook and waits for the delivery goroutine to drain.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	done := h.done
	h.mu.Unlock()

	h.end()
	<-done
	h.logger.Info("input hook stopped")
}
