// Package singleinstance keeps one resident per user session and lets later
// invocations hand their translation to it over loopback TCP.
package singleinstance

import (
	"context"
	"errors"
)

var ErrServerClosed = errors.New("singleinstance: server closed")

// Server accepts delegated translations on the first free port of PortRange.
type Server interface {
	Start(ctx context.Context) error
	// Port is the bound port, or 0 before Start.
	Port() int
	// Next blocks until a request arrives, ctx is done or the server closes.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one accepted request. Exactly one Respond call is expected before Close.
type Conn interface {
	Request() Request
	// RespondSuccess replies with the translation; copy requests reply with "".
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request is one delegated translation.
type Request struct {
	Text string
	// Copy asks the resident to put the translation on its clipboard.
	Copy bool
}

// Client delegates to a resident. delegated is false, with a nil error, when
// no resident answers.
type Client interface {
	TryTranslate(ctx context.Context, req Request) (delegated bool, text string, err error)
}
