package coordinator

import (
	"sync"
	"time"

	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// AgentFeedback is the per-tick status reported for one agent.
type AgentFeedback struct {
	ID             string            `json:"id"`
	FlightState    fleet.FlightState `json:"flight_state"`
	Connected      bool              `json:"connected"`
	Completed      bool              `json:"completed"`
	MissionCapable bool              `json:"mission_capable"`
}

// TargetPath is the remaining route of one agent: its current position
// followed by every queued waypoint.
type TargetPath struct {
	AgentID string  `json:"agent_id"`
	Points  []Point `json:"points"`
}

type Feedback struct {
	Tick    uint64          `json:"tick"`
	Stamp   time.Time       `json:"stamp"`
	Agents  []AgentFeedback `json:"agents"`
	Targets []TargetPath    `json:"targets"`
}

// FeedbackSink receives every tick's feedback. Implementations must not block.
type FeedbackSink interface {
	PublishFeedback(Feedback)
}

// BuildFeedback summarizes a registry snapshot. Agents with an empty queue
// get no target path.
func BuildFeedback(states []fleet.AgentState, tick uint64, now time.Time) Feedback {
	fb := Feedback{
		Tick:    tick,
		Stamp:   now,
		Agents:  make([]AgentFeedback, 0, len(states)),
		Targets: []TargetPath{},
	}
	for _, s := range states {
		fb.Agents = append(fb.Agents, AgentFeedback{
			ID:             s.ID,
			FlightState:    s.FlightState,
			Connected:      s.RadioConnection,
			Completed:      s.Completed,
			MissionCapable: s.MissionCapable,
		})
		if s.Targets.Empty() {
			continue
		}
		path := TargetPath{AgentID: s.ID, Points: []Point{PointOf(s.Position)}}
		for _, p := range s.Targets.Points() {
			path.Points = append(path.Points, PointOf(p))
		}
		fb.Targets = append(fb.Targets, path)
	}
	return fb
}

// TargetsGeoJSON renders each target path as a ground-track LineString.
// Altitudes, which GeoJSON positions cannot carry here, go in properties.
func (fb Feedback) TargetsGeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, path := range fb.Targets {
		line := make(orb.LineString, 0, len(path.Points))
		alts := make([]float64, 0, len(path.Points))
		for _, p := range path.Points {
			line = append(line, orb.Point{p.X, p.Y})
			alts = append(alts, p.Z)
		}
		f := geojson.NewFeature(line)
		f.ID = path.AgentID
		f.Properties["agent_id"] = path.AgentID
		f.Properties["altitudes"] = alts
		f.Properties["waypoints"] = len(path.Points) - 1
		fc.Append(f)
	}
	return fc
}

// FeedbackStore keeps the most recent feedback for pull-style readers.
type FeedbackStore struct {
	mu     sync.RWMutex
	latest Feedback
	ok     bool
}

func (s *FeedbackStore) PublishFeedback(fb Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = fb
	s.ok = true
}

// Latest reports false until the first tick has completed.
func (s *FeedbackStore) Latest() (Feedback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}
