package coordinator

import (
	"context"
	"time"

	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/observability"
)

// schedule fires a tick every TickPeriod. A tick that comes due while the
// previous one is still running, or while the pool queue is full, is skipped.
func (c *Coordinator) schedule(ctx context.Context) error {
	t := time.NewTicker(c.cfg.TickPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.fireTick()
		}
	}
}

// fireTick reports whether a tick was handed to the pool.
func (c *Coordinator) fireTick() bool {
	if !c.ticking.CompareAndSwap(false, true) {
		observability.RecordTickSkipped()
		logs.Warnf("coordinator.Coordinator.schedule tick skipped: previous tick still running")
		return false
	}
	ok := c.pool.TrySubmit(func() {
		defer c.ticking.Store(false)
		c.Tick()
	})
	if !ok {
		c.ticking.Store(false)
		observability.RecordTickSkipped()
		logs.Warnf("coordinator.Coordinator.schedule tick skipped: worker queue full pending=%d", c.pool.Pending())
	}
	return ok
}
