// Package motion describes the requests the coordinator sends to each agent's
// low-level motion service and delivers them without awaiting a reply.
package motion

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Broadcast addresses a request to every agent in the selected group.
const Broadcast = "*"

// Group masks. Agents start in GroupAll; land-and-regroup moves an agent to
// GroupDetached so later broadcast commands skip it.
const (
	GroupAll      uint32 = 0
	GroupDetached uint32 = 1
)

type Kind uint8

const (
	KindTakeoff Kind = iota + 1
	KindLand
	KindGoTo
	KindSetGroupMask
	KindVelocityWorld
)

func (k Kind) String() string {
	switch k {
	case KindTakeoff:
		return "takeoff"
	case KindLand:
		return "land"
	case KindGoTo:
		return "goto"
	case KindSetGroupMask:
		return "set_group_mask"
	case KindVelocityWorld:
		return "velocity_world"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Duration is a motion-service duration split into whole seconds and the
// truncated nanosecond remainder.
type Duration struct {
	Sec     int32
	Nanosec uint32
}

// DurationFor returns amount/rate seconds: floor for Sec, the fractional part
// times 1e9 truncated for Nanosec. A non-positive rate yields zero.
func DurationFor(amount, rate float64) Duration {
	if rate <= 0 || amount <= 0 || math.IsNaN(amount) {
		return Duration{}
	}
	q := amount / rate
	whole := math.Floor(q)
	return Duration{
		Sec:     int32(whole),
		Nanosec: uint32((q - whole) * 1e9),
	}
}

func (d Duration) Std() time.Duration {
	return time.Duration(d.Sec)*time.Second + time.Duration(d.Nanosec)
}

// Request is one fire-and-forget motion-service call. Only the fields that
// belong to Kind are meaningful.
type Request struct {
	Kind      Kind
	AgentID   string
	GroupMask uint32
	Height    float64
	Duration  Duration
	Goal      r3.Vec
	Yaw       float64
	Relative  bool
	Velocity  r3.Vec
	Stamp     time.Time
}

func (r Request) IsBroadcast() bool { return r.AgentID == Broadcast }

func Takeoff(agentID string, height float64, d Duration, groupMask uint32) Request {
	return Request{Kind: KindTakeoff, AgentID: agentID, Height: height, Duration: d, GroupMask: groupMask}
}

func Land(agentID string, height float64, d Duration, groupMask uint32) Request {
	return Request{Kind: KindLand, AgentID: agentID, Height: height, Duration: d, GroupMask: groupMask}
}

func GoTo(agentID string, goal r3.Vec, yaw float64, d Duration, relative bool, groupMask uint32) Request {
	return Request{
		Kind:      KindGoTo,
		AgentID:   agentID,
		Goal:      goal,
		Yaw:       yaw,
		Duration:  d,
		Relative:  relative,
		GroupMask: groupMask,
	}
}

func SetGroupMask(agentID string, groupMask uint32) Request {
	return Request{Kind: KindSetGroupMask, AgentID: agentID, GroupMask: groupMask}
}

// VelocityWorld is the continuous world-frame velocity publish. height is the
// altitude of the target the velocity steers toward.
func VelocityWorld(agentID string, v r3.Vec, height, yaw float64, stamp time.Time) Request {
	return Request{Kind: KindVelocityWorld, AgentID: agentID, Velocity: v, Height: height, Yaw: yaw, Stamp: stamp}
}

// Sender delivers requests without blocking and without reporting the outcome.
type Sender interface {
	Send(Request)
}
