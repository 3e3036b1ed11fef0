package eventloop

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"clip-translator/src/facade"
	"clip-translator/src/singleinstance"
)

type resultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error)
	Close()
}

// delegatedTarget answers a request from another process. Copy requests put
// the translation on the clipboard and reply with an empty body.
type delegatedTarget struct {
	conn singleinstance.Conn
	copy bool
	clip ClipboardWriter
}

func (t delegatedTarget) OnSuccess(text string) error {
	if t.conn == nil {
		return errors.New("delegated target missing connection")
	}
	if !t.copy {
		return t.conn.RespondSuccess(text)
	}
	if t.clip == nil {
		return errors.New("clipboard unavailable")
	}
	if err := t.clip.WriteText(text); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.conn.RespondSuccess("")
}

func (t delegatedTarget) OnFailure(err error) {
	if t.conn == nil {
		return
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = t.conn.RespondError(err.Error())
}

func (t delegatedTarget) Close() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
}

// WriterPresenter prints each completion as "[backend from->to] text".
type WriterPresenter struct {
	mu sync.Mutex
	W  io.Writer
}

func (p *WriterPresenter) Present(c facade.Completion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.W
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "[%s %s->%s] %s\n", c.Backend, c.From, c.To, c.Text)
}
