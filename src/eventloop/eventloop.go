package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clip-translator/src/facade"
	"clip-translator/src/logutil"
	"clip-translator/src/singleinstance"
	"clip-translator/src/translate"
	"clip-translator/src/worker"
)

var errBusy = errors.New("Busy, please retry")

// Controller is the side of the registry the loop drives: configuration and
// listener toggles, plus direct translation for delegated requests.
type Controller interface {
	SetCurrentTranslator(k translate.Kind) error
	SetSourceLanguage(l translate.Language) error
	SetDestLanguage(l translate.Language) error
	SetClipboardListener(on bool)
	SetDragCopy(on bool)
	SetKeepParagraph(on bool)
	SetKeepOnTop(on bool)
	SetIncrementalCopy(on bool)
	Translate(ctx context.Context, text string) (facade.Completion, error)
}

// Presenter renders completions. Presenters that also implement
// ErrorPresenter are told about failed jobs.
type Presenter interface {
	Present(c facade.Completion)
}

type ErrorPresenter interface {
	PresentError(f facade.Failure)
}

type ClipboardWriter interface {
	WriteText(text string) error
}

type Options struct {
	Controller Controller
	Pool       *worker.Pool
	// Server is optional; without it the loop only serves local input.
	Server     singleinstance.Server
	Clipboard  ClipboardWriter
	Presenters []Presenter
	Deadline   time.Duration
	Logger     *zap.Logger
}

// Loop is the single-threaded coordinator: every completion, tray action and
// delegated request is handled on the goroutine running Run.
type Loop struct {
	ctrl       Controller
	pool       *worker.Pool
	srv        singleinstance.Server
	clip       ClipboardWriter
	presenters []Presenter
	deadline   time.Duration
	logger     *zap.Logger

	tasks   chan func()
	actions chan Action
	done    chan struct{}

	lastSeq uint64
}

// New creates a loop. A zero Deadline means 20s for delegated requests.
func New(opts Options) *Loop {
	if opts.Deadline <= 0 {
		opts.Deadline = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loop{
		ctrl:       opts.Controller,
		pool:       opts.Pool,
		srv:        opts.Server,
		clip:       opts.Clipboard,
		presenters: opts.Presenters,
		deadline:   opts.Deadline,
		logger:     opts.Logger.Named("eventloop"),
		tasks:      make(chan func(), 16),
		actions:    make(chan Action, 4),
		done:       make(chan struct{}),
	}
}

// Post schedules fn on the loop goroutine. It is the facade's dispatcher.
// After Run has returned, fn is dropped.
func (l *Loop) Post(fn func()) { l.post(fn) }

func (l *Loop) post(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Submit queues a tray action.
func (l *Loop) Submit(a Action) {
	select {
	case l.actions <- a:
	case <-l.done:
	}
}

// OnComplete implements facade.Listener. The facade calls it through Post, so
// it runs on the loop goroutine.
func (l *Loop) OnComplete(c facade.Completion) {
	if c.Seq <= l.lastSeq {
		l.logger.Debug("stale completion dropped", zap.Uint64("seq", c.Seq), zap.Uint64("shown", l.lastSeq))
		return
	}
	l.lastSeq = c.Seq
	for _, p := range l.presenters {
		p.Present(c)
	}
}

// OnError implements facade.ErrorListener.
func (l *Loop) OnError(f facade.Failure) {
	for _, p := range l.presenters {
		if ep, ok := p.(ErrorPresenter); ok {
			ep.PresentError(f)
		}
	}
}

// Run processes loop work until ctx is cancelled or a Quit action arrives.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reqCh := make(chan singleinstance.Conn, 4)
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return fmt.Errorf("start resident server: %w", err)
		}
		defer func() {
			if err := l.srv.Close(); err != nil {
				l.logger.Warn("close resident server", zap.Error(err))
			}
		}()
		if p := l.srv.Port(); p > 0 {
			l.logger.Info("resident listening", zap.Int("port", p))
		}
		// Accept loop in background to avoid blocking result handling
		go func() {
			defer close(reqCh)
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					return
				}
				select {
				case reqCh <- conn:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.safeRun(fn)
		case a := <-l.actions:
			if a.Kind == ActionQuit {
				l.logger.Info("quit requested")
				return nil
			}
			l.handleAction(a)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		}
	}
}

func (l *Loop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in loop task", zap.Any("panic", r))
		}
	}()
	fn()
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	target := delegatedTarget{conn: conn, copy: req.Copy, clip: l.clip}
	if l.pool == nil {
		target.OnFailure(errBusy)
		target.Close()
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	submitted := l.pool.Submit(jobCtx, func(ctx context.Context) {
		c, err := l.ctrl.Translate(ctx, req.Text)
		posted := l.post(func() {
			defer cancel()
			l.handleResult(c, err, target)
		})
		if !posted {
			cancel()
			target.Close()
		}
	})
	if !submitted {
		cancel()
		l.logger.Warn("delegated request rejected, pool busy")
		target.OnFailure(errBusy)
		target.Close()
	}
}

func (l *Loop) handleResult(c facade.Completion, err error, target resultTarget) {
	defer target.Close()
	if err != nil {
		l.logger.Warn("delegated translation failed", zap.Error(err))
		target.OnFailure(err)
		return
	}
	if err := target.OnSuccess(c.Text); err != nil {
		l.logger.Warn("delegated delivery failed", zap.Error(err))
		target.OnFailure(err)
		return
	}
	l.logger.Info("delegated translation delivered",
		zap.Stringer("job_id", c.JobID),
		zap.String("text", logutil.Sanitize(c.Text)),
	)
}
