package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/infra/metrics"
)

// Task is one unit of work run by the pool.
type Task func(ctx context.Context) error

// ErrShutdownTimeout is returned by Stop when tasks outlived the grace period.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Pool runs submitted tasks on a fixed number of goroutines. Submit blocks
// while the queue is full so inbound work is never dropped. Tasks run with a
// context that survives cancellation of the Start context and is cancelled
// only when Stop's grace period expires.
type Pool struct {
	n    int
	jobs chan Task
	wg   sync.WaitGroup
	log  *zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool

	taskCtx    context.Context
	cancelTask context.CancelFunc
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{n: workers, jobs: make(chan Task, queueSize), log: &l}
}

// Start launches the workers. Values from ctx stay visible to tasks.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.taskCtx, p.cancelTask = context.WithCancel(context.WithoutCancel(ctx))

	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				metrics.SetWorkerQueueDepth(len(p.jobs))
				p.run(id, task)
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Int("queue", cap(p.jobs)).Msg("worker pool started")
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncWorkerTask("panic")
			p.log.Error().Int("worker", id).Str("panic", fmt.Sprint(r)).Msg("task panicked")
		}
	}()
	if err := task(p.taskCtx); err != nil {
		metrics.IncWorkerTask("error")
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
		return
	}
	metrics.IncWorkerTask("ok")
}

// Submit enqueues task, waiting for room until ctx is done.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.ErrQueueClosed
	}
	select {
	case p.jobs <- task:
		metrics.SetWorkerQueueDepth(len(p.jobs))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new tasks, lets queued and running tasks finish within grace,
// then cancels whatever is still running and waits for it to return.
func (p *Pool) Stop(grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelTask()
		p.log.Info().Msg("worker pool drained")
		return nil
	case <-time.After(grace):
		p.log.Warn().Dur("grace", grace).Msg("cancelling in-flight tasks")
		p.cancelTask()
		<-done
		return ErrShutdownTimeout
	}
}
