package fleet

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// FlightState is the per-agent flight mode advanced by the coordinator tick.
type FlightState uint8

const (
	Idle FlightState = iota
	Takeoff
	Move
	MoveVelocity
	InternalTracking
	Hover
	Land
)

var flightStateNames = [...]string{
	Idle:             "IDLE",
	Takeoff:          "TAKEOFF",
	Move:             "MOVE",
	MoveVelocity:     "MOVE_VELOCITY",
	InternalTracking: "INTERNAL_TRACKING",
	Hover:            "HOVER",
	Land:             "LAND",
}

func (s FlightState) String() string {
	if int(s) < len(flightStateNames) {
		return flightStateNames[s]
	}
	return fmt.Sprintf("FlightState(%d)", uint8(s))
}

func (s FlightState) MarshalText() ([]byte, error) {
	if int(s) >= len(flightStateNames) {
		return nil, fmt.Errorf("fleet: unknown flight state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *FlightState) UnmarshalText(b []byte) error {
	raw := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, name := range flightStateNames {
		if name == raw {
			*s = FlightState(i)
			return nil
		}
	}
	return fmt.Errorf("fleet: unknown flight state %q", raw)
}

// AgentState is the coordinator's view of one fleet member.
type AgentState struct {
	ID              string
	Position        r3.Vec
	Orientation     quat.Number
	Velocity        r3.Vec
	FlightState     FlightState
	Targets         TargetQueue
	PreviousTarget  r3.Vec
	Completed       bool
	RadioConnection bool
	MissionCapable  bool
	Timestamp       time.Time
	LastSeen        time.Time
}

// newAgentState returns the startup state: idle, at rest, identity pose.
func newAgentState(id string) *AgentState {
	return &AgentState{
		ID:          id,
		Orientation: quat.Number{Real: 1},
		FlightState: Idle,
	}
}

// Clone returns a copy that shares no queue storage with s.
func (s AgentState) Clone() AgentState {
	out := s
	out.Targets = s.Targets.clone()
	return out
}

// Kinematics is the planner-facing subset of an agent's state.
type Kinematics struct {
	ID       string
	Position r3.Vec
	Velocity r3.Vec
}

func (s *AgentState) Kinematics() Kinematics {
	return Kinematics{ID: s.ID, Position: s.Position, Velocity: s.Velocity}
}
