package coordinator

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/danmuck/swarmctl/internal/logs"
	"golang.org/x/sync/errgroup"
)

var ErrPoolFull = errors.New("coordinator: worker queue full")

// Pool is a fixed set of workers draining one shared callback queue.
// Telemetry writes, command dispatch and ticks all run here, so callbacks for
// different agents and of different kinds may execute concurrently.
type Pool struct {
	workers int
	jobs    chan func()
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &Pool{workers: workers, jobs: make(chan func(), queueSize)}
}

// Run blocks until ctx is cancelled. Jobs still queued at that point are
// discarded.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		i := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case job := <-p.jobs:
					runJob(i, job)
				}
			}
		})
	}
	return g.Wait()
}

// runJob keeps one panicking callback from taking the worker down with it.
func runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errf("coordinator.Pool worker=%d panic=%v\n%s", worker, r, debug.Stack())
		}
	}()
	job()
}

// Submit waits for queue space or ctx.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues job only if there is room right now.
func (p *Pool) TrySubmit(job func()) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Pending reports how many callbacks are waiting for a worker.
func (p *Pool) Pending() int { return len(p.jobs) }
