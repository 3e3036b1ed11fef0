package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	residentHost    = "127.0.0.1"
	pingRequest     = "PING\n"
	pongResponse    = "PONG\n"
	translateVerb   = "TRANSLATE"
	modePrint       = "PRINT"
	modeCopy        = "COPY"
	statusSuccess   = "SUCCESS\n"
	statusError     = "ERROR\n"
	maxRequestBytes = 1 << 20
	headerTimeout   = 3 * time.Second
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	port     int
	incoming chan *tcpConn
	done     chan struct{}
	logger   *zap.Logger
}

// NewServer returns the TCP loopback implementation.
func NewServer(logger *zap.Logger) Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tcpServer{
		incoming: make(chan *tcpConn, 8),
		done:     make(chan struct{}),
		logger:   logger.Named("singleinstance"),
	}
}

// Start binds ONLY the start port of the configured range. If occupied, fail.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := PortRange()
	addr := net.JoinHostPort(residentHost, strconv.Itoa(start))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Warn("failed to bind", zap.String("addr", addr), zap.Error(err))
		return err
	}
	s.lis = lis
	s.port = lis.Addr().(*net.TCPAddr).Port
	s.logger.Info("listening", zap.String("addr", lis.Addr().String()))
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		tc, ok := s.handshake(c)
		if !ok {
			continue
		}
		select {
		case s.incoming <- tc:
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-s.done:
			_ = c.Close()
			return
		}
	}
}

// handshake answers PING inline and parses a translate request. It reports
// false when the connection has been dealt with.
func (s *tcpServer) handshake(c net.Conn) (*tcpConn, bool) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(headerTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)

	line, err := br.ReadString('\n')
	if err != nil {
		_ = c.Close()
		return nil, false
	}
	if line == pingRequest {
		s.logger.Debug("PING -> PONG", zap.String("remote", remote))
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	}

	req, err := readRequest(line, br)
	if err != nil {
		s.logger.Warn("bad request", zap.String("remote", remote), zap.Error(err))
		_, _ = bw.WriteString(statusError + err.Error())
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	}
	_ = c.SetDeadline(time.Time{})
	s.logger.Info("translate request", zap.String("remote", remote), zap.Bool("copy", req.Copy), zap.Int("bytes", len(req.Text)))
	return &tcpConn{c: c, r: req, w: bw}, true
}

// readRequest parses "TRANSLATE <PRINT|COPY> <n>\n" followed by n bytes of text.
func readRequest(header string, br *bufio.Reader) (Request, error) {
	fields := strings.Fields(header)
	if len(fields) != 3 || fields[0] != translateVerb {
		return Request{}, fmt.Errorf("unknown request %q", strings.TrimSpace(header))
	}
	var req Request
	switch fields[1] {
	case modePrint:
	case modeCopy:
		req.Copy = true
	default:
		return Request{}, fmt.Errorf("unknown mode %q", fields[1])
	}
	n, err := strconv.Atoi(fields[2])
	if err != nil || n < 0 || n > maxRequestBytes {
		return Request{}, fmt.Errorf("invalid length %q", fields[2])
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return Request{}, fmt.Errorf("short request body: %w", err)
	}
	req.Text = string(buf)
	return req, nil
}

func writeRequest(w *bufio.Writer, req Request) error {
	mode := modePrint
	if req.Copy {
		mode = modeCopy
	}
	if _, err := fmt.Fprintf(w, "%s %s %d\n", translateVerb, mode, len(req.Text)); err != nil {
		return err
	}
	if _, err := w.WriteString(req.Text); err != nil {
		return err
	}
	return w.Flush()
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrServerClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	if s.lis != nil {
		_ = s.lis.Close()
	}
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	if _, err := tc.w.WriteString(statusSuccess); err != nil {
		return err
	}
	if len(text) > 0 {
		if _, err := tc.w.WriteString(text); err != nil {
			return err
		}
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(statusError + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
