package coordinator

import (
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/observability"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	OutcomeSent       = "sent"
	OutcomeUnfinished = "unfinished"
	OutcomeEmpty      = "empty"
)

// DispatchResult reports which requested agents a command reached. Complete
// is true only when every requested id resolved.
type DispatchResult struct {
	RequestID    uuid.UUID `json:"request_id"`
	Verb         Verb      `json:"verb"`
	Requested    []string  `json:"requested"`
	Acknowledged []string  `json:"acknowledged"`
	Unresolved   []string  `json:"unresolved,omitempty"`
	Complete     bool      `json:"complete"`
}

func (r DispatchResult) Outcome() string {
	switch {
	case len(r.Requested) == 0:
		return OutcomeEmpty
	case r.Complete:
		return OutcomeSent
	default:
		return OutcomeUnfinished
	}
}

// Dispatch applies cmd. Unknown agent ids are skipped and reported; they
// never fail the command as a whole.
func (c *Coordinator) Dispatch(cmd Command) DispatchResult {
	res := DispatchResult{RequestID: uuid.New(), Verb: cmd.Verb}

	switch cmd.Verb {
	case VerbTakeoffAll:
		res.Requested = c.reg.IDs()
		res.Acknowledged = c.lifecycleAll(fleet.Takeoff, c.cfg.TakeoffHeight)
	case VerbLandAll:
		res.Requested = c.reg.IDs()
		res.Acknowledged = c.lifecycleAll(fleet.Land, 0)
	case VerbGoToVelocity:
		res.Requested = c.expand(cmd.AgentIDs)
		res.Acknowledged = c.each(res.Requested, func(a *fleet.AgentState) {
			if cmd.ExternalOverride {
				a.Targets.Clear()
			}
			a.Targets.Push(cmd.Goal)
			a.FlightState = fleet.MoveVelocity
			a.Completed = false
		})
	case VerbGoTo:
		res.Requested = c.expand(cmd.AgentIDs)
		res.Acknowledged = c.each(res.Requested, func(a *fleet.AgentState) {
			dist := r3.Norm(r3.Sub(cmd.Goal, a.Position))
			d := motion.DurationFor(dist, c.cfg.MaxVelocity)
			c.sender.Send(motion.GoTo(a.ID, cmd.Goal, cmd.Yaw, d, false, motion.GroupAll))
			a.Targets.Clear()
			a.FlightState = fleet.Move
			a.Completed = false
		})
	case VerbLand:
		res.Requested = c.expand(cmd.AgentIDs)
		res.Acknowledged = c.each(res.Requested, c.landAndRegroupLocked)
	default:
		logs.Errf("coordinator.Coordinator.Dispatch unknown verb=%s", cmd.Verb)
		observability.RecordDispatch(cmd.Verb.String(), "rejected")
		return res
	}

	res.Unresolved = difference(res.Requested, res.Acknowledged)
	res.Complete = len(res.Requested) > 0 && len(res.Unresolved) == 0
	outcome := res.Outcome()
	observability.RecordDispatch(cmd.Verb.String(), outcome)
	switch outcome {
	case OutcomeSent:
		logs.Infof(
			"coordinator.Coordinator.Dispatch %s_sent request_id=%s agents=%d",
			cmd.Verb, res.RequestID, len(res.Acknowledged),
		)
	default:
		logs.Warnf(
			"coordinator.Coordinator.Dispatch %s_sent %s request_id=%s requested=%d acknowledged=%d unresolved=%v",
			cmd.Verb, outcome, res.RequestID, len(res.Requested), len(res.Acknowledged), res.Unresolved,
		)
	}
	return res
}

// lifecycleAll sends one broadcast takeoff or land and retargets every agent
// to its own (x, y, height) under a single registry lock hold.
func (c *Coordinator) lifecycleAll(state fleet.FlightState, height float64) []string {
	d := motion.DurationFor(c.cfg.TakeoffHeight, c.cfg.TakeoffLandVelocity)
	if state == fleet.Takeoff {
		c.sender.Send(motion.Takeoff(motion.Broadcast, height, d, motion.GroupAll))
	} else {
		c.sender.Send(motion.Land(motion.Broadcast, height, d, motion.GroupAll))
	}
	var acked []string
	c.reg.UpdateAll(func(a *fleet.AgentState) {
		a.Targets.Reset(r3.Vec{X: a.Position.X, Y: a.Position.Y, Z: height})
		a.FlightState = state
		a.Completed = false
		acked = append(acked, a.ID)
	})
	return acked
}

// expand replaces the AllAgents sentinel with every registered id and drops
// duplicates, preserving first-seen order.
func (c *Coordinator) expand(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if id == AllAgents {
			for _, known := range c.reg.IDs() {
				add(known)
			}
			continue
		}
		add(id)
	}
	return out
}

func (c *Coordinator) each(ids []string, fn func(*fleet.AgentState)) []string {
	acked := make([]string, 0, len(ids))
	for _, id := range ids {
		if c.reg.Update(id, fn) {
			acked = append(acked, id)
		}
	}
	return acked
}

func difference(all, acked []string) []string {
	ok := make(map[string]bool, len(acked))
	for _, id := range acked {
		ok[id] = true
	}
	var out []string
	for _, id := range all {
		if !ok[id] {
			out = append(out, id)
		}
	}
	return out
}
