package coordinator

import (
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
	"gonum.org/v1/gonum/spatial/r3"
)

// LandAndRegroup lands one agent and detaches it from the broadcast group.
// It reports false for unknown ids.
func (c *Coordinator) LandAndRegroup(id string) bool {
	return c.reg.Update(id, c.landAndRegroupLocked)
}

// landAndRegroupLocked must run under the registry lock. Both motion requests
// are fire-and-forget; the Sender never blocks, so sending here does not
// extend the critical section.
func (c *Coordinator) landAndRegroupLocked(a *fleet.AgentState) {
	d := motion.DurationFor(a.Position.Z, c.cfg.TakeoffLandVelocity)
	c.sender.Send(motion.Land(a.ID, 0, d, motion.GroupAll))
	c.sender.Send(motion.SetGroupMask(a.ID, motion.GroupDetached))

	a.Targets.Reset(r3.Vec{X: a.Position.X, Y: a.Position.Y, Z: 0})
	a.FlightState = fleet.Land
	a.Completed = false
	logs.Infof(
		"coordinator.Coordinator.LandAndRegroup id=%q from_z=%.3f duration=%s",
		a.ID, a.Position.Z, d.Std(),
	)
}
