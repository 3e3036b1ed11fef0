package worker

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Task is one unit of work. It runs on a pool goroutine and must report its
// own result (typically by posting back into the event loop).
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool with a bounded input queue (strict back-pressure).
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	once   sync.Once
	logger *zap.Logger
}

type job struct {
	ctx context.Context
	run Task
}

// New creates a worker pool. Size defaults to NumCPU when size<=0 and the
// queue to one slot when queue<=0.
func New(size, queue int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{jobs: make(chan job, queue), logger: logger.Named("worker")}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runJob(id, j)
			}
		}(i)
	}
}

func (p *Pool) runJob(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in task", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	if err := j.ctx.Err(); err != nil {
		p.logger.Debug("task expired before start", zap.Int("worker", id), zap.Error(err))
	}
	j.run(j.ctx)
}

// Submit enqueues a task if the queue has room. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	select {
	case p.jobs <- job{ctx: ctx, run: task}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work. Submit must not be called
// after Close.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
