// Package concurrency provides the worker pool that keeps CPU-bound
// indicator computation off the request intake path.
package concurrency

import (
	"context"
	"log/slog"
	"sync"
)

type task struct {
	fn   func() error
	done chan error
}

// Pool runs submitted tasks on a fixed set of workers. Request handlers
// submit a computation and await its completion without blocking intake
// goroutines on CPU-bound work.
type Pool struct {
	workers int
	logger  *slog.Logger
	tasks   chan task
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		logger:  logger,
		tasks:   make(chan task),
		done:    make(chan struct{}),
	}
}

// Start launches the workers. They run until ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop stops the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	close(p.done)
	p.wg.Wait()
}

// Do submits fn and waits for it to complete. Returns ctx.Err() if the
// caller's context ends before a worker picks the task up or finishes it.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return context.Canceled
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", "worker_id", id)
	defer p.logger.Debug("worker stopped", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case t := <-p.tasks:
			t.done <- t.fn()
		}
	}
}
