package capture

import (
	"context"
	"errors"
	"image"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gohook "github.com/robotn/gohook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"clip-translator/src/hotkey"
)

const testInterval = 5 * time.Millisecond

type fakeClipboard struct {
	mu    sync.Mutex
	text  string
	image []byte
	err   error
}

func (f *fakeClipboard) set(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

func (f *fakeClipboard) Text() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeClipboard) Image() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image, f.err
}

type recordingSink struct {
	mu       sync.Mutex
	texts    []string
	images   [][]byte
	imageErr error
}

func (s *recordingSink) OnTextInput(_ context.Context, text string) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
}

func (s *recordingSink) OnImageInput(_ context.Context, png []byte) error {
	s.mu.Lock()
	s.images = append(s.images, png)
	s.mu.Unlock()
	return s.imageErr
}

func (s *recordingSink) textCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// scriptedSource plays back a fixed list of poll results, then reports nothing.
type scriptedSource struct {
	mu     sync.Mutex
	steps  []func() (Event, bool, error)
	resets atomic.Int32
}

func (s *scriptedSource) Name() string { return "scripted" }
func (s *scriptedSource) Reset()       { s.resets.Add(1) }

func (s *scriptedSource) Poll(context.Context) (Event, bool, error) {
	s.mu.Lock()
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return Event{}, false, nil
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()
	return step()
}

func emit(ev Event) func() (Event, bool, error) {
	return func() (Event, bool, error) { return ev, true, nil }
}

// counterSource emits a fresh text on every poll.
type counterSource struct{ n atomic.Int64 }

func (c *counterSource) Name() string { return "counter" }

func (c *counterSource) Poll(context.Context) (Event, bool, error) {
	return Text(strconv.FormatInt(c.n.Add(1), 10)), true, nil
}

func TestListenerDeliversInPollOrder(t *testing.T) {
	src := &scriptedSource{steps: []func() (Event, bool, error){
		emit(Text("one")),
		func() (Event, bool, error) { return Event{}, false, nil },
		emit(Text("two")),
		emit(Text("three")),
	}}
	sink := &recordingSink{}
	l := NewListener(src, sink, testInterval, true, nil)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	require.Eventually(t, func() bool { return sink.textCount() == 3 }, time.Second, testInterval)
	assert.Equal(t, []string{"one", "two", "three"}, sink.snapshot())
	assert.ErrorIs(t, l.Start(context.Background()), ErrAlreadyStarted)
}

func TestListenerDisableStopsEmissionsWithinOneInterval(t *testing.T) {
	src := &counterSource{}
	sink := &recordingSink{}
	l := NewListener(src, sink, testInterval, true, nil)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	require.Eventually(t, func() bool { return sink.textCount() >= 3 }, time.Second, testInterval)
	l.SetEnabled(false)
	assert.False(t, l.Enabled())

	time.Sleep(4 * testInterval)
	settled := sink.textCount()
	time.Sleep(10 * testInterval)
	assert.Equal(t, settled, sink.textCount())

	l.SetEnabled(true)
	require.Eventually(t, func() bool { return sink.textCount() > settled }, time.Second, testInterval)
}

func TestListenerResetsSourceWhenEnabled(t *testing.T) {
	src := &scriptedSource{}
	l := NewListener(src, &recordingSink{}, testInterval, false, nil)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	time.Sleep(4 * testInterval)
	assert.Equal(t, int32(0), src.resets.Load())

	l.SetEnabled(true)
	require.Eventually(t, func() bool { return src.resets.Load() == 1 }, time.Second, testInterval)

	l.SetEnabled(false)
	time.Sleep(4 * testInterval)
	l.SetEnabled(true)
	require.Eventually(t, func() bool { return src.resets.Load() == 2 }, time.Second, testInterval)
}

func TestListenerSurvivesPollFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	src := &scriptedSource{steps: []func() (Event, bool, error){
		func() (Event, bool, error) { panic("driver crashed") },
		func() (Event, bool, error) { return Event{}, false, errors.New("clipboard locked") },
		emit(Image([]byte("png"))),
		emit(Text("after")),
	}}
	sink := &recordingSink{imageErr: errors.New("decode failed")}
	l := NewListener(src, sink, testInterval, true, zap.New(core))
	require.NoError(t, l.Start(context.Background()))

	require.Eventually(t, func() bool { return sink.textCount() == 1 }, time.Second, testInterval)
	l.Stop()

	assert.Equal(t, []string{"after"}, sink.snapshot())
	assert.Len(t, sink.images, 1)
	assert.Equal(t, 2, logs.FilterMessage("poll failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("image input failed").Len())
}

// failingSource fails every poll with the same error until healed.
type failingSource struct {
	polls  atomic.Int32
	healed atomic.Bool
}

func (f *failingSource) Name() string { return "failing" }

func (f *failingSource) Poll(context.Context) (Event, bool, error) {
	f.polls.Add(1)
	if f.healed.Load() {
		return Event{}, false, nil
	}
	return Event{}, false, errors.New("clipboard unavailable")
}

func TestListenerLogsRepeatedPollErrorOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	src := &failingSource{}
	l := NewListener(src, &recordingSink{}, testInterval, true, zap.New(core))
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	require.Eventually(t, func() bool { return src.polls.Load() >= 10 }, time.Second, testInterval)
	assert.Equal(t, 1, logs.FilterMessage("poll failed").Len())

	src.healed.Store(true)
	require.Eventually(t, func() bool { return logs.FilterMessage("poll recovered").Len() == 1 }, time.Second, testInterval)

	src.healed.Store(false)
	require.Eventually(t, func() bool { return logs.FilterMessage("poll failed").Len() == 2 }, time.Second, testInterval)
}

func TestListenerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(&counterSource{}, &recordingSink{}, testInterval, true, nil)
	require.NoError(t, l.Start(ctx))
	cancel()
	l.Stop()
	l.Stop()
}

func TestClipboardSourceBaselineThenChanges(t *testing.T) {
	cb := &fakeClipboard{text: "already there"}
	src := NewClipboardSource(cb, &Seen{})
	ctx := context.Background()

	_, ok, err := src.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "first poll only records a baseline")

	_, ok, _ = src.Poll(ctx)
	assert.False(t, ok)

	cb.set("fresh copy")
	ev, ok, err := src.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Text("fresh copy"), ev)

	_, ok, _ = src.Poll(ctx)
	assert.False(t, ok, "same content is emitted once")

	src.Reset()
	cb.set("copied while disabled")
	_, ok, _ = src.Poll(ctx)
	assert.False(t, ok)
}

func TestClipboardSourceImages(t *testing.T) {
	cb := &fakeClipboard{}
	src := NewClipboardSource(cb, &Seen{})
	ctx := context.Background()

	_, ok, _ := src.Poll(ctx)
	assert.False(t, ok)

	cb.mu.Lock()
	cb.image = []byte("\x89PNG...")
	cb.mu.Unlock()

	ev, ok, err := src.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ImageCaptured, ev.Kind)
	assert.Equal(t, []byte("\x89PNG..."), ev.Image)
}

func TestClipboardSourceReadError(t *testing.T) {
	src := NewClipboardSource(&fakeClipboard{err: errors.New("unavailable")}, &Seen{})
	_, ok, err := src.Poll(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestSharedSeenSuppressesOwnWrites(t *testing.T) {
	seen := &Seen{}
	cb := &fakeClipboard{}
	src := NewClipboardSource(cb, seen)
	_, _, _ = src.Poll(context.Background())

	cb.set("translated output")
	seen.MarkText("translated output")
	_, ok, _ := src.Poll(context.Background())
	assert.False(t, ok)
}

func dragEvents(from, to image.Point) []gohook.Event {
	return []gohook.Event{
		{Kind: gohook.MouseHold, Button: leftButton, X: int16(from.X), Y: int16(from.Y)},
		{Kind: gohook.MouseDrag, X: int16(to.X), Y: int16(to.Y)},
		{Kind: gohook.MouseDown, Button: leftButton, X: int16(to.X), Y: int16(to.Y)},
	}
}

func TestDragSourceCopiesSelection(t *testing.T) {
	seen := &Seen{}
	cb := &fakeClipboard{}
	copies := 0
	src := NewDragSource(cb, seen,
		WithCopyDelay(0),
		WithCopyFunc(func() error {
			copies++
			cb.set("selected words")
			return nil
		}),
	)
	ctx := context.Background()

	_, ok, _ := src.Poll(ctx)
	assert.False(t, ok, "nothing armed yet")

	for _, ev := range dragEvents(image.Pt(10, 10), image.Pt(60, 12)) {
		src.HandleEvent(ev)
	}
	ev, ok, err := src.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Text("selected words"), ev)
	assert.Equal(t, 1, copies)

	_, ok, _ = src.Poll(ctx)
	assert.False(t, ok, "one drag yields one copy")

	// The clipboard listener sharing the tracker does not emit the same text again.
	clip := NewClipboardSource(cb, seen)
	clip.baseline.Store(false)
	_, ok, _ = clip.Poll(ctx)
	assert.False(t, ok)
}

func TestDragSourceIgnoresClicksAndSmallMoves(t *testing.T) {
	src := NewDragSource(&fakeClipboard{}, &Seen{}, WithCopyDelay(0), WithCopyFunc(func() error {
		t.Fatal("copy must not be sent")
		return nil
	}))

	for _, ev := range dragEvents(image.Pt(10, 10), image.Pt(12, 11)) {
		src.HandleEvent(ev)
	}
	src.HandleEvent(gohook.Event{Kind: gohook.MouseHold, Button: 2, X: 0, Y: 0})
	src.HandleEvent(gohook.Event{Kind: gohook.MouseDrag, X: 200, Y: 200})
	src.HandleEvent(gohook.Event{Kind: gohook.MouseDown, Button: 2, X: 200, Y: 200})

	_, ok, err := src.Poll(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDragSourceResetDropsPendingDrag(t *testing.T) {
	src := NewDragSource(&fakeClipboard{}, &Seen{}, WithCopyDelay(0), WithCopyFunc(func() error {
		t.Fatal("copy must not be sent")
		return nil
	}))
	for _, ev := range dragEvents(image.Pt(0, 0), image.Pt(100, 0)) {
		src.HandleEvent(ev)
	}
	src.Reset()
	_, ok, _ := src.Poll(context.Background())
	assert.False(t, ok)
}

func TestHotkeySourceCapturesAroundPointer(t *testing.T) {
	m, err := hotkey.NewMatcher("Ctrl+Q")
	require.NoError(t, err)

	var at image.Point
	src := NewHotkeySource(m,
		func(p image.Point) ([]byte, error) { at = p; return []byte("shot"), nil },
		func() image.Point { return image.Pt(300, 400) },
	)

	_, ok, _ := src.Poll(context.Background())
	assert.False(t, ok)

	src.HandleEvent(gohook.Event{Kind: gohook.KeyHold, Rawcode: 162})
	src.HandleEvent(gohook.Event{Kind: gohook.KeyHold, Rawcode: 81})

	ev, ok, err := src.Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Image([]byte("shot")), ev)
	assert.Equal(t, image.Pt(300, 400), at)
}

func TestHotkeySourceCaptureError(t *testing.T) {
	m, err := hotkey.NewMatcher("F9")
	require.NoError(t, err)
	src := NewHotkeySource(m,
		func(image.Point) ([]byte, error) { return nil, errors.New("no display") },
		func() image.Point { return image.Point{} },
	)
	src.HandleEvent(gohook.Event{Kind: gohook.KeyHold, Rawcode: 120})
	_, ok, err := src.Poll(context.Background())
	assert.False(t, ok)
	assert.EqualError(t, err, "no display")
}
