// Package facade is the single entry point between capture sources and the
// translation backends. It preprocesses input, resolves the backend and
// languages from the current settings for every job, and reports completions
// through an injected dispatcher.
package facade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"clip-translator/src/config"
	"clip-translator/src/logutil"
	"clip-translator/src/ocr"
	"clip-translator/src/preprocess"
	"clip-translator/src/translate"
)

var (
	// ErrEmptyText is returned for input that is empty after preprocessing.
	ErrEmptyText         = errors.New("empty text")
	// ErrNoRecognizer is returned by OnImageInput when no OCR collaborator is set.
	ErrNoRecognizer      = errors.New("no OCR recognizer configured")
	errMissingDependency = errors.New("facade: missing dependency")
)

// InputCaptureError wraps an OCR or image decoding failure.
type InputCaptureError struct {
	Err error
}

func (e *InputCaptureError) Error() string { return fmt.Sprintf("input capture failed: %v", e.Err) }

func (e *InputCaptureError) Unwrap() error { return e.Err }

// TranslationJob is created per dispatch from the settings at call time.
type TranslationJob struct {
	ID         ulid.ULID
	Seq        uint64
	SourceText string
	From       translate.Language
	To         translate.Language
	Backend    translate.Kind
}

// Completion is what an observer receives for a successful job.
type Completion struct {
	JobID    ulid.ULID
	Seq      uint64
	Origin   string
	Text     string
	Backend  translate.Kind
	From     translate.Language
	To       translate.Language
	Duration time.Duration
}

// Failure is what an error observer receives for a failed job.
type Failure struct {
	Job TranslationJob
	Err error
}

type Listener interface {
	OnComplete(Completion)
}

type ListenerFunc func(Completion)

func (fn ListenerFunc) OnComplete(c Completion) { fn(c) }

type ErrorListener interface {
	OnError(Failure)
}

type ErrorListenerFunc func(Failure)

func (fn ErrorListenerFunc) OnError(f Failure) { fn(f) }

// Dispatcher runs fn on the execution context the observers require.
type Dispatcher func(fn func())

// Direct runs fn on the calling goroutine.
func Direct(fn func()) { fn() }

// Settings is the read side of the runtime configuration.
type Settings interface {
	Snapshot() config.Snapshot
}

// Translator dispatches to the backend selected by kind. *translate.Set implements it.
type Translator interface {
	Translate(ctx context.Context, k translate.Kind, text string, from, to translate.Language) (string, error)
}

type Options struct {
	Settings   Settings
	Backends   Translator
	Recognizer ocr.Recognizer
	Dispatch   Dispatcher
	// Timeout bounds one backend call. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	Logger  *zap.Logger
}

type listenerBox struct{ l Listener }
type errorListenerBox struct{ l ErrorListener }

type Facade struct {
	settings   Settings
	backends   Translator
	recognizer ocr.Recognizer
	dispatch   Dispatcher
	timeout    time.Duration
	logger     *zap.Logger

	seq         atomic.Uint64
	listener    atomic.Pointer[listenerBox]
	errListener atomic.Pointer[errorListenerBox]

	incMu  sync.Mutex
	incBuf string
}

func New(opts Options) (*Facade, error) {
	if opts.Settings == nil || opts.Backends == nil {
		return nil, fmt.Errorf("%w: settings and backends are required", errMissingDependency)
	}
	if opts.Dispatch == nil {
		opts.Dispatch = Direct
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Facade{
		settings:   opts.Settings,
		backends:   opts.Backends,
		recognizer: opts.Recognizer,
		dispatch:   opts.Dispatch,
		timeout:    opts.Timeout,
		logger:     opts.Logger.Named("facade"),
	}, nil
}

// SetFacadeListener registers the completion observer. The last registration
// wins; nil removes it.
func (f *Facade) SetFacadeListener(l Listener) {
	if l == nil {
		f.listener.Store(nil)
		return
	}
	f.listener.Store(&listenerBox{l: l})
}

// SetErrorListener registers the observer for failed jobs. nil removes it.
func (f *Facade) SetErrorListener(l ErrorListener) {
	if l == nil {
		f.errListener.Store(nil)
		return
	}
	f.errListener.Store(&errorListenerBox{l: l})
}

// Process translates text on the calling goroutine and reports the result to
// the completion listener. Failures are logged once and never reach the
// completion listener.
func (f *Facade) Process(ctx context.Context, text string) {
	job, c, err := f.run(ctx, text)
	if err != nil {
		if errors.Is(err, ErrEmptyText) {
			f.logger.Debug("empty input ignored")
			return
		}
		f.logger.Error("translation failed",
			zap.Stringer("job_id", job.ID),
			zap.Uint64("seq", job.Seq),
			zap.Stringer("backend", job.Backend),
			zap.String("text", logutil.Sanitize(job.SourceText)),
			zap.Error(err),
		)
		if box := f.errListener.Load(); box != nil {
			failure := Failure{Job: job, Err: err}
			f.dispatch(func() { box.l.OnError(failure) })
		}
		return
	}

	f.logger.Info("translation complete",
		zap.Stringer("job_id", c.JobID),
		zap.Uint64("seq", c.Seq),
		zap.Stringer("backend", c.Backend),
		zap.Duration("took", c.Duration),
	)
	if box := f.listener.Load(); box != nil {
		f.dispatch(func() { box.l.OnComplete(c) })
	}
}

// Translate runs one job and returns its result without notifying listeners.
// It serves callers that answer a request directly (delegated requests, CLI).
func (f *Facade) Translate(ctx context.Context, text string) (Completion, error) {
	_, c, err := f.run(ctx, text)
	return c, err
}

// OnTextInput is the capture entry point for text. With incremental copy on,
// the text is appended to the previous capture before translating.
func (f *Facade) OnTextInput(ctx context.Context, text string) {
	f.Process(ctx, f.accumulate(text, f.settings.Snapshot().IncrementalCopy))
}

// OnImageInput runs OCR and forwards any text to Process. An image without
// text is not an error and produces no job.
func (f *Facade) OnImageInput(ctx context.Context, png []byte) error {
	if f.recognizer == nil {
		return &InputCaptureError{Err: ErrNoRecognizer}
	}
	text, err := f.recognizer.Recognize(ctx, png)
	if err != nil {
		return &InputCaptureError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		f.logger.Debug("no text in captured image")
		return nil
	}
	f.Process(ctx, text)
	return nil
}

// ResetIncremental clears the incremental copy buffer.
func (f *Facade) ResetIncremental() {
	f.incMu.Lock()
	f.incBuf = ""
	f.incMu.Unlock()
}

func (f *Facade) accumulate(text string, incremental bool) string {
	f.incMu.Lock()
	defer f.incMu.Unlock()
	if !incremental {
		f.incBuf = ""
		return text
	}
	if strings.TrimSpace(text) == "" {
		return f.incBuf
	}
	if f.incBuf == "" {
		f.incBuf = text
	} else {
		f.incBuf = f.incBuf + " " + text
	}
	return f.incBuf
}

func (f *Facade) run(ctx context.Context, text string) (TranslationJob, Completion, error) {
	snap := f.settings.Snapshot()
	job := TranslationJob{
		SourceText: preprocess.Normalize(text, snap.KeepParagraph),
		From:       snap.SourceLanguage,
		To:         snap.DestLanguage,
		Backend:    snap.Translator,
	}
	if job.SourceText == "" {
		return job, Completion{}, ErrEmptyText
	}
	job.ID = ulid.Make()
	job.Seq = f.seq.Add(1)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := f.backends.Translate(ctx, job.Backend, job.SourceText, job.From, job.To)
	if err == nil && strings.TrimSpace(out) == "" {
		err = &translate.Error{Backend: job.Backend, Err: fmt.Errorf("%w: empty translation", translate.ErrMalformedResponse)}
	}
	if err != nil {
		return job, Completion{}, err
	}

	return job, Completion{
		JobID:    job.ID,
		Seq:      job.Seq,
		Origin:   job.SourceText,
		Text:     out,
		Backend:  job.Backend,
		From:     job.From,
		To:       job.To,
		Duration: time.Since(start),
	}, nil
}
