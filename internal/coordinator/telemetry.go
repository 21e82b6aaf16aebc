package coordinator

import (
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/observability"
	"gonum.org/v1/gonum/spatial/r3"
)

// IngestPose queues a pose update on the worker pool. Unknown ids are
// counted and otherwise ignored. It reports false when the queue was full.
func (c *Coordinator) IngestPose(id string, pose fleet.Pose) bool {
	return c.enqueueTelemetry("pose", id, func() bool { return c.reg.ApplyPose(id, pose) })
}

func (c *Coordinator) IngestVelocity(id string, v r3.Vec) bool {
	return c.enqueueTelemetry("velocity", id, func() bool { return c.reg.ApplyVelocity(id, v) })
}

func (c *Coordinator) IngestMissionCapable(id string, capable bool) bool {
	return c.enqueueTelemetry("mission_capable", id, func() bool { return c.reg.SetMissionCapable(id, capable) })
}

func (c *Coordinator) enqueueTelemetry(feed, id string, apply func() bool) bool {
	ok := c.Enqueue(func() {
		observability.RecordTelemetry(feed, apply())
	})
	if !ok {
		logs.Warnf("coordinator.Coordinator.Ingest dropped feed=%s id=%q: worker queue full", feed, id)
	}
	return ok
}
