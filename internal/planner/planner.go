// Package planner computes collision-avoiding velocities for fleet agents.
//
// Each Plan call snapshots every other agent from the registry, builds a
// fresh kd-tree over that snapshot, range-queries it by communication radius
// and hands the resulting neighbor set to the agent's reciprocal velocity
// obstacle solver. The index is discarded when the call returns.
package planner

import (
	"math"
	"sync"
	"time"

	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/observability"
	"gonum.org/v1/gonum/spatial/r3"
)

type Config struct {
	CommunicationRadius float64
	ProtectedZone       float64
	MaxVelocity         float64
	TimeHorizon         float64
	TimeStep            float64
}

func DefaultConfig() Config {
	return Config{
		CommunicationRadius: 1.0,
		ProtectedZone:       0.2,
		MaxVelocity:         0.5,
		TimeHorizon:         1.5,
		TimeStep:            0.1,
	}
}

// Source provides the registry snapshot the planner indexes.
type Source interface {
	KinematicsExcept(id string) []fleet.Kinematics
}

// Result describes one planning invocation.
type Result struct {
	Desired   r3.Vec
	Velocity  r3.Vec
	Neighbors []Neighbor
	Elapsed   time.Duration
}

// Planner owns one Avoider per agent id. Avoiders persist across ticks only to
// hold the agent's last perceived neighbor set; the spatial index does not.
type Planner struct {
	cfg Config
	src Source

	mu       sync.Mutex
	avoiders map[string]*avoiderSlot
}

type avoiderSlot struct {
	mu sync.Mutex
	a  *Avoider
}

func New(cfg Config, src Source) *Planner {
	return &Planner{
		cfg:      cfg,
		src:      src,
		avoiders: make(map[string]*avoiderSlot),
	}
}

func (p *Planner) slot(id string) *avoiderSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.avoiders[id]
	if !ok {
		s = &avoiderSlot{a: &Avoider{
			ID:          id,
			Radius:      p.cfg.ProtectedZone,
			MaxSpeed:    p.cfg.MaxVelocity,
			TimeHorizon: p.cfg.TimeHorizon,
			TimeStep:    p.cfg.TimeStep,
		}}
		p.avoiders[id] = s
	}
	return s
}

// Plan returns a velocity close to desired that avoids self's neighbors.
// self must be a snapshot taken under the registry lock; Plan itself only
// takes the lock while copying the other agents.
func (p *Planner) Plan(self fleet.Kinematics, desired r3.Vec) Result {
	start := time.Now()
	out := Result{Desired: desired, Velocity: desired}

	others := p.src.KinematicsExcept(self.ID)
	snapshot := make([]Neighbor, 0, len(others))
	for _, k := range others {
		snapshot = append(snapshot, Neighbor{
			ID:       k.ID,
			Position: k.Position,
			Velocity: k.Velocity,
			Radius:   p.cfg.ProtectedZone,
		})
	}
	index := BuildIndex(snapshot)
	found := index.Within(self.Position, p.cfg.CommunicationRadius)

	s := p.slot(self.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.a.UpdateState(self.Position, self.Velocity, desired)
	s.a.ClearNeighbors()
	for _, n := range found {
		s.a.InsertNeighbor(n, p.cfg.CommunicationRadius)
	}

	if !s.a.NoNeighbors() {
		out.Neighbors = s.a.Neighbors()
		if v := s.a.ComputeNewVelocity(); Finite(v) {
			out.Velocity = v
		} else {
			logs.Warnf("planner.Planner.Plan id=%q neighbors=%d non-finite solution, keeping desired", self.ID, len(out.Neighbors))
		}
	}
	out.Elapsed = time.Since(start)
	observability.RecordPlan(len(out.Neighbors), out.Elapsed)
	logs.Debugf(
		"planner.Planner.Plan id=%q neighbors=%d desired=(%.3f %.3f %.3f) out=(%.3f %.3f %.3f) took=%s",
		self.ID, len(out.Neighbors),
		desired.X, desired.Y, desired.Z,
		out.Velocity.X, out.Velocity.Y, out.Velocity.Z,
		out.Elapsed,
	)
	return out
}

// Neighbors returns the neighbor set perceived by id's last planning call.
func (p *Planner) Neighbors(id string) []Neighbor {
	p.mu.Lock()
	s, ok := p.avoiders[id]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Neighbors()
}

// Finite reports whether every component of v is a real number.
func Finite(v r3.Vec) bool {
	for _, x := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
