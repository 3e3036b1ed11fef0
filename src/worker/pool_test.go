package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(2, 4, nil)
	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		assert.True(t, p.Submit(context.Background(), func(context.Context) { ran.Add(1) }))
	}
	p.Close()
	assert.Equal(t, int32(4), ran.Load())
}

func TestPoolRejectsWhenFull(t *testing.T) {
	p := New(1, 1, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	assert.True(t, p.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	assert.True(t, p.Submit(context.Background(), func(context.Context) {}), "queue slot is free")
	assert.False(t, p.Submit(context.Background(), func(context.Context) {}), "queue is full")

	close(release)
	p.Close()
}

func TestPoolRecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := New(1, 2, zap.New(core))
	var after atomic.Bool

	p.Submit(context.Background(), func(context.Context) { panic("boom") })
	p.Submit(context.Background(), func(context.Context) { after.Store(true) })
	p.Close()

	assert.True(t, after.Load())
	assert.Equal(t, 1, logs.FilterMessage("panic in task").Len())
}

func TestPoolPassesContext(t *testing.T) {
	p := New(1, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	got := make(chan error, 1)
	time.Sleep(2 * time.Millisecond)
	p.Submit(ctx, func(ctx context.Context) { got <- ctx.Err() })
	p.Close()
	assert.ErrorIs(t, <-got, context.DeadlineExceeded)
}
