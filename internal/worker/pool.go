package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is a unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs tasks from a bounded queue on a fixed number of goroutines.
// Submit never blocks: when the queue is full the task is dropped and counted.
type Pool struct {
	queue   chan Task
	workers int
	logger  *zerolog.Logger
	wg      sync.WaitGroup
	started atomic.Bool
	dropped atomic.Int64

	// OnDone is called after every task with its result; nil is allowed.
	OnDone func(task Task, err error)
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pool{
		queue:   make(chan Task, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Submit enqueues the task. It reports false when the queue is full.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.queue <- task:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn().Str("task", task.Name).Msg("worker queue full, task dropped")
		return false
	}
}

// Start launches the workers. They stop when ctx is done; queued tasks are abandoned.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx)
	}
	p.logger.Info().Int("workers", p.workers).Msg("worker pool started")
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Dropped returns the number of tasks rejected because the queue was full.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Pending returns the number of queued tasks.
func (p *Pool) Pending() int {
	return len(p.queue)
}

func (p *Pool) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			p.run(ctx, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, task Task) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.logger.Error().Interface("panic", r).Str("task", task.Name).Msg("worker task panicked")
		}
		if p.OnDone != nil {
			p.OnDone(task, err)
		}
	}()

	if err = task.Run(ctx); err != nil {
		p.logger.Error().Err(err).Str("task", task.Name).Msg("worker task failed")
	}
}
