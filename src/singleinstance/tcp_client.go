package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

type tcpClient struct{}

// NewClient returns the TCP loopback implementation.
func NewClient() Client { return tcpClient{} }

func (tcpClient) TryTranslate(ctx context.Context, req Request) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	// scan configured range for resident using PING then request
	start, end := PortRange()
	for port := start; port <= end; port++ {
		addr := residentAddr(port)
		if !ping(addr, deadline) {
			continue
		}
		text, err := delegate(ctx, addr, req, deadline)
		return true, text, err
	}
	return false, "", nil
}

func delegate(ctx context.Context, addr string, req Request, dialTimeout time.Duration) (string, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := writeRequest(bufio.NewWriter(conn), req); err != nil {
		return "", err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case statusSuccess:
		return string(body), nil
	case statusError:
		return "", errors.New(string(body))
	}
	return "", fmt.Errorf("unexpected response %q", status)
}
