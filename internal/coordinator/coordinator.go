package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/planner"
	"golang.org/x/sync/errgroup"
)

// Coordinator ties the registry, planner and motion sender together.
// Every registry read-modify-write goes through fleet.Registry's single lock.
type Coordinator struct {
	cfg     Config
	reg     *fleet.Registry
	planner *planner.Planner
	sender  motion.Sender
	pool    *Pool
	store   *FeedbackStore
	now     func() time.Time

	sinks   []FeedbackSink
	ticking atomic.Bool
	ticks   atomic.Uint64
}

type Option func(*Coordinator)

// WithSinks adds feedback consumers published to after every tick.
func WithSinks(sinks ...FeedbackSink) Option {
	return func(c *Coordinator) { c.sinks = append(c.sinks, sinks...) }
}

// WithClock replaces time.Now for the tick and for pose receipt, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(cfg Config, reg *fleet.Registry, pl *planner.Planner, sender motion.Sender, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg:     cfg,
		reg:     reg,
		planner: pl,
		sender:  sender,
		pool:    NewPool(cfg.Workers, cfg.QueueSize),
		store:   &FeedbackStore{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	reg.SetClock(c.now)
	logs.Infof(
		"coordinator.New agents=%d max_velocity=%.3f reached_threshold=%.3f tick=%s workers=%d",
		reg.Len(), cfg.MaxVelocity, cfg.ReachedThreshold, cfg.TickPeriod, cfg.Workers,
	)
	return c, nil
}

func (c *Coordinator) Config() Config            { return c.cfg }
func (c *Coordinator) Registry() *fleet.Registry { return c.reg }
func (c *Coordinator) Planner() *planner.Planner { return c.planner }
func (c *Coordinator) Feedback() *FeedbackStore  { return c.store }

// Run starts the worker pool and the tick scheduler and blocks until ctx is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.pool.Run(ctx) })
	g.Go(func() error { return c.schedule(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Submit runs cmd through the dispatcher on the worker pool and waits for
// its result.
func (c *Coordinator) Submit(ctx context.Context, cmd Command) (DispatchResult, error) {
	done := make(chan DispatchResult, 1)
	if err := c.pool.Submit(ctx, func() { done <- c.Dispatch(cmd) }); err != nil {
		return DispatchResult{}, err
	}
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return DispatchResult{}, ctx.Err()
	}
}

// Enqueue hands a telemetry callback to the pool without waiting. It reports
// false when the pool queue is full and the callback was dropped.
func (c *Coordinator) Enqueue(fn func()) bool {
	return c.pool.TrySubmit(fn)
}
