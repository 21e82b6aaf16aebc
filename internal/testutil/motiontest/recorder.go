// Package motiontest provides an in-memory motion.Sender for tests.
package motiontest

import (
	"sync"

	"github.com/danmuck/swarmctl/internal/motion"
)

// Recorder keeps every request it is sent, in order.
type Recorder struct {
	mu       sync.Mutex
	requests []motion.Request
}

func (r *Recorder) Send(req motion.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *Recorder) Requests() []motion.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Request(nil), r.requests...)
}

// Kind returns the recorded requests of one kind.
func (r *Recorder) Kind(k motion.Kind) []motion.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []motion.Request
	for _, req := range r.requests {
		if req.Kind == k {
			out = append(out, req)
		}
	}
	return out
}

// For returns the recorded requests addressed to agentID.
func (r *Recorder) For(agentID string) []motion.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []motion.Request
	for _, req := range r.requests {
		if req.AgentID == agentID {
			out = append(out, req)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

var _ motion.Sender = (*Recorder)(nil)
