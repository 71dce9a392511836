package pool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

// DefaultSize is the number of workers when none is configured.
const DefaultSize = 64

// Pool is a fixed-size set of workers consuming a shared Queue.
type Pool[T any] struct {
	size    int
	handle  func(T)
	abandon func(T)
	queue   *Queue[T]

	wg        sync.WaitGroup
	exiting   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a pool of size workers running handle. abandon, if not nil,
// receives every item still queued when the pool stops.
func New[T any](size int, handle func(T), abandon func(T)) *Pool[T] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool[T]{
		size:    size,
		handle:  handle,
		abandon: abandon,
		queue:   NewQueue[T](),
	}
}

// Start launches the workers. Calling it again has no effect.
func (p *Pool[T]) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.size)
		for i := 0; i < p.size; i++ {
			go p.worker(i)
		}
		logging.Debug("Worker pool started", zap.Int("workers", p.size))
	})
}

// Submit queues v for a worker.
func (p *Pool[T]) Submit(v T) error {
	if p.exiting.Load() {
		return ErrClosed
	}
	return p.queue.Push(v)
}

// Exiting reports whether Stop has been called. Handlers check it to end
// keep-alive loops early.
func (p *Pool[T]) Exiting() bool { return p.exiting.Load() }

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return p.size }

// Pending returns the number of items waiting for a worker.
func (p *Pool[T]) Pending() int { return p.queue.Len() }

// Stop closes the queue, abandons the items still in it and waits for
// every worker to finish its current item. It returns ctx.Err() if the
// workers do not finish in time; they still exit on their own later.
func (p *Pool[T]) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.exiting.Store(true)
		rest := p.queue.Close()
		if len(rest) > 0 {
			logging.Info("Abandoning queued items", zap.Int("count", len(rest)))
		}
		for _, v := range rest {
			if p.abandon != nil {
				p.abandon(v)
			}
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool: waiting for workers: %w", ctx.Err())
	}
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()
	for {
		v, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.run(id, v)
	}
}

// run isolates a panicking handler so the worker survives it.
func (p *Pool[T]) run(id int, v T) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Worker recovered from panic",
				zap.Int("worker", id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	p.handle(v)
}
