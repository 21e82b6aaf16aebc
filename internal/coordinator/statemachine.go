package coordinator

import (
	"time"

	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/observability"
	"github.com/danmuck/swarmctl/internal/planner"
	"gonum.org/v1/gonum/spatial/r3"
)

// step is what one agent's transition asks the caller to do once the registry
// lock is released.
type step struct {
	emit     bool
	velocity r3.Vec
	height   float64
	plan     bool
	self     fleet.Kinematics
}

// Tick evaluates the flight state machine once for every agent and publishes
// the resulting feedback.
func (c *Coordinator) Tick() Feedback {
	start := time.Now()
	if expired := c.reg.ExpireConnections(c.now(), c.cfg.ConnectionTimeout); len(expired) > 0 {
		logs.Warnf("coordinator.Coordinator.Tick radio_connection lost ids=%v", expired)
	}

	for _, id := range c.reg.IDs() {
		c.stepAgent(id)
	}

	fb := BuildFeedback(c.reg.Snapshot(), c.ticks.Add(1), c.now())
	c.store.PublishFeedback(fb)
	for _, sink := range c.sinks {
		sink.PublishFeedback(fb)
	}
	elapsed := time.Since(start)
	observability.RecordTick(elapsed)
	logs.Tracef("coordinator.Coordinator.Tick n=%d agents=%d took=%s", fb.Tick, len(fb.Agents), elapsed)
	return fb
}

func (c *Coordinator) stepAgent(id string) {
	var s step
	if !c.reg.Update(id, func(a *fleet.AgentState) { s = c.advanceLocked(a) }) {
		return
	}
	if !s.emit {
		return
	}
	v := s.velocity
	if s.plan && c.planner != nil {
		if pv := c.planner.Plan(s.self, v).Velocity; planner.Finite(pv) {
			v = pv
		} else {
			logs.Warnf("coordinator.Coordinator.stepAgent id=%q discarding non-finite planner velocity", id)
		}
	}
	c.sender.Send(motion.VelocityWorld(id, v, s.height, 0, c.now()))
}

// advanceLocked applies one transition to a. It runs under the registry lock.
func (c *Coordinator) advanceLocked(a *fleet.AgentState) step {
	switch a.FlightState {
	case fleet.Idle:
		return step{}

	case fleet.Hover:
		return step{
			emit:     true,
			velocity: c.toward(a.Position, a.PreviousTarget),
			height:   a.PreviousTarget.Z,
		}

	case fleet.Takeoff, fleet.Move, fleet.Land:
		front, ok := a.Targets.Front()
		if !ok {
			if a.FlightState == fleet.Land {
				a.FlightState = fleet.Idle
			} else {
				a.FlightState = fleet.Hover
			}
			a.Completed = true
			return step{}
		}
		if r3.Norm(r3.Sub(front, a.Position)) < c.cfg.ReachedThreshold {
			a.PreviousTarget = front
			a.Targets.Pop()
		}
		return step{}

	case fleet.MoveVelocity, fleet.InternalTracking:
		front, ok := a.Targets.Front()
		if !ok {
			if a.FlightState == fleet.MoveVelocity {
				a.FlightState = fleet.Hover
			} else {
				c.landAndRegroupLocked(a)
			}
			a.Completed = true
			return step{}
		}
		out := step{emit: true, height: front.Z}
		diff := r3.Sub(front, a.Position)
		dist := r3.Norm(diff)
		switch {
		case dist < c.cfg.ReachedThreshold:
			a.PreviousTarget = front
			a.Targets.Pop()
		case dist < c.cfg.MaxVelocity:
			out.velocity = diff
		default:
			out.velocity = r3.Scale(c.cfg.MaxVelocity/dist, diff)
			out.plan = true
			out.self = a.Kinematics()
		}
		return out
	}
	return step{}
}

// toward returns the displacement to target, clamped to max_velocity.
func (c *Coordinator) toward(from, target r3.Vec) r3.Vec {
	diff := r3.Sub(target, from)
	dist := r3.Norm(diff)
	if dist < c.cfg.MaxVelocity {
		return diff
	}
	return r3.Scale(c.cfg.MaxVelocity/dist, diff)
}
