package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"clip-translator/src/singleinstance"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.mode != "print" {
		t.Fatalf("Expected default mode=print, got %q", opts.mode)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--mode", "copy", "--text", "hi", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 || opts.mode != "copy" || opts.text != "hi" || opts.deadline != 7*time.Second {
		t.Fatalf("Unexpected options: %+v", opts)
	}
}

// scriptedClient answers by call order: busy, error, no resident, then success.
type scriptedClient struct {
	calls  atomic.Int32
	copies atomic.Int32
}

func (c *scriptedClient) TryTranslate(_ context.Context, req singleinstance.Request) (bool, string, error) {
	if req.Copy {
		c.copies.Add(1)
	}
	switch c.calls.Add(1) {
	case 1:
		return true, "", errors.New("Busy, please retry")
	case 2:
		return true, "", errors.New("connection reset")
	case 3:
		return false, "", nil
	}
	return true, "ok", nil
}

func TestRunWithOptionsCountsOutcomes(t *testing.T) {
	client := &scriptedClient{}
	s := runWithOptions(stressOptions{n: 6, mode: "copy", text: "x", deadline: time.Second}, client)

	if s.launched != 6 || s.busy != 1 || s.errs != 2 || s.ok != 3 {
		t.Fatalf("Unexpected summary: %s", s)
	}
	if client.copies.Load() != 6 {
		t.Fatalf("Expected copy requests, got %d", client.copies.Load())
	}
}
