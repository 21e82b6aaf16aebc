package fleet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrAgentNotFound = errors.New("fleet: agent not found")
	ErrInvalidAgent  = errors.New("fleet: invalid agent id")
)

// DefaultHistoryCapacity bounds per-agent telemetry history when unset.
const DefaultHistoryCapacity = 10

// Registry owns every AgentState behind one process-wide mutex.
//
// Mutators hold the lock for one map lookup plus O(queue length) work;
// there are no per-agent locks, so "all agents" operations observe a
// consistent snapshot of the whole fleet.
type Registry struct {
	mu      sync.Mutex
	agents  map[string]*AgentState
	order   []string
	history map[string]*history
	now     func() time.Time
}

// NewRegistry creates one IDLE entry per configured agent id.
func NewRegistry(ids []string, historyCapacity int) (*Registry, error) {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	r := &Registry{
		agents:  make(map[string]*AgentState, len(ids)),
		history: make(map[string]*history, len(ids)),
		now:     time.Now,
	}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" || id == "all" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAgent, raw)
		}
		if _, dup := r.agents[id]; dup {
			return nil, fmt.Errorf("%w: duplicate %q", ErrInvalidAgent, id)
		}
		r.agents[id] = newAgentState(id)
		r.history[id] = newHistory(historyCapacity)
		r.order = append(r.order, id)
	}
	sort.Strings(r.order)
	return r, nil
}

// SetClock replaces the clock that stamps pose receipt.
func (r *Registry) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// IDs returns registered agent ids in stable order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[id]
	return ok
}

// Lookup returns a copy of one agent's state.
func (r *Registry) Lookup(id string) (AgentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return AgentState{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a.Clone(), nil
}

// Update runs fn on one agent while the registry lock is held.
// It reports false, without calling fn, for unknown ids.
func (r *Registry) Update(id string, fn func(*AgentState)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// UpdateAll runs fn on every agent, in id order, under a single lock hold.
func (r *Registry) UpdateAll(fn func(*AgentState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		fn(r.agents[id])
	}
}

// Snapshot returns copies of every agent in id order.
func (r *Registry) Snapshot() []AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AgentState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].Clone())
	}
	return out
}

// KinematicsExcept copies position and velocity of every agent other than id.
func (r *Registry) KinematicsExcept(id string) []Kinematics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kinematics, 0, len(r.order))
	for _, key := range r.order {
		if key == id {
			continue
		}
		out = append(out, r.agents[key].Kinematics())
	}
	return out
}

// ExpireConnections clears radio_connection for agents whose last pose was
// received more than timeout before now and returns their ids. Sender stamps
// are not consulted. A non-positive timeout disables expiry.
func (r *Registry) ExpireConnections(now time.Time, timeout time.Duration) []string {
	if timeout <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []string
	for _, id := range r.order {
		a := r.agents[id]
		if !a.RadioConnection {
			continue
		}
		if now.Sub(a.LastSeen) > timeout {
			a.RadioConnection = false
			expired = append(expired, id)
		}
	}
	return expired
}
