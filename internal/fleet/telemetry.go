package fleet

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is one position/orientation sample from an agent's pose feed.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
	Stamp       time.Time
}

// HistoryRecord is one post-update state kept for diagnostics.
type HistoryRecord struct {
	State    AgentState
	Attitude Euler
}

// history is a fixed-capacity ring that drops its oldest record on overflow.
type history struct {
	records []HistoryRecord
	start   int
	size    int
}

func newHistory(capacity int) *history {
	return &history{records: make([]HistoryRecord, capacity)}
}

func (h *history) push(rec HistoryRecord) {
	c := len(h.records)
	if h.size < c {
		h.records[(h.start+h.size)%c] = rec
		h.size++
		return
	}
	h.records[h.start] = rec
	h.start = (h.start + 1) % c
}

func (h *history) list() []HistoryRecord {
	out := make([]HistoryRecord, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.records[(h.start+i)%len(h.records)])
	}
	return out
}

// ApplyPose overwrites position, orientation and the sender timestamp, records
// the receipt time, marks the radio link alive and appends the result to the agent's history.
// Unknown ids are ignored; the return value reports whether the id resolved.
func (r *Registry) ApplyPose(id string, pose Pose) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	a.Position = pose.Position
	a.Orientation = pose.Orientation
	a.Timestamp = pose.Stamp
	a.LastSeen = r.now()
	a.RadioConnection = true
	r.history[id].push(HistoryRecord{
		State:    a.Clone(),
		Attitude: EulerFromQuat(pose.Orientation),
	})
	return true
}

// ApplyVelocity overwrites the measured linear velocity only.
func (r *Registry) ApplyVelocity(id string, v r3.Vec) bool {
	return r.Update(id, func(a *AgentState) {
		a.Velocity = v
	})
}

// SetMissionCapable records the externally supplied readiness flag.
func (r *Registry) SetMissionCapable(id string, capable bool) bool {
	return r.Update(id, func(a *AgentState) {
		a.MissionCapable = capable
	})
}

// History returns the retained pose history for id, oldest first.
func (r *Registry) History(id string) ([]HistoryRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.history[id]
	if !ok {
		return nil, false
	}
	return h.list(), true
}
