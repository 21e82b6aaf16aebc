package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/swarmctl/internal/api"
	"github.com/danmuck/swarmctl/internal/bus"
	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/planner"
)

// Runtime is the resolved configuration handed to each component.
type Runtime struct {
	Agents          []string
	HistoryCapacity int

	Coordinator coordinator.Config
	Planner     planner.Config
	API         api.Config
	NATS        bus.Config
	NATSEnabled bool
	Motion      motion.ClientConfig
}

func Default() Runtime {
	cfg := Runtime{
		HistoryCapacity: fleet.DefaultHistoryCapacity,
		Coordinator:     coordinator.DefaultConfig(),
		Planner:         planner.DefaultConfig(),
		API:             api.DefaultConfig(),
		NATS:            bus.DefaultConfig(),
		Motion:          motion.DefaultClientConfig(),
	}
	cfg.Planner.MaxVelocity = cfg.Coordinator.MaxVelocity
	cfg.NATS.CommandTimeout = cfg.API.CommandTimeout
	return cfg
}

// MotionEnabled reports whether requests go to real motion services rather
// than the log sender.
func (r Runtime) MotionEnabled() bool { return len(r.Motion.Endpoints) > 0 }

func endpoints(entries []EndpointEntry) []motion.Endpoint {
	out := make([]motion.Endpoint, 0, len(entries))
	for _, e := range entries {
		out = append(out, motion.Endpoint{
			AgentID: strings.TrimSpace(e.AgentID),
			Addr:    strings.TrimSpace(e.Addr),
		})
	}
	return out
}

// Validate checks cross-component constraints on a resolved config.
func Validate(cfg Runtime) error {
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("%w: at least one agent is required", ErrInvalid)
	}
	known := make(map[string]bool, len(cfg.Agents))
	for i, id := range cfg.Agents {
		switch {
		case id == "":
			return fmt.Errorf("%w: agents[%d] is empty", ErrInvalid, i)
		case id == motion.Broadcast || strings.EqualFold(id, coordinator.AllAgents):
			return fmt.Errorf("%w: agent id %q is reserved", ErrInvalid, id)
		case known[id]:
			return fmt.Errorf("%w: duplicate agent id %q", ErrInvalid, id)
		}
		known[id] = true
	}
	if cfg.HistoryCapacity <= 0 {
		return fmt.Errorf("%w: history_capacity must be > 0", ErrInvalid)
	}
	if err := cfg.Coordinator.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	p := cfg.Planner
	switch {
	case p.CommunicationRadius <= 0:
		return fmt.Errorf("%w: communication_radius must be > 0", ErrInvalid)
	case p.ProtectedZone <= 0:
		return fmt.Errorf("%w: protected_zone must be > 0", ErrInvalid)
	case p.TimeHorizon <= 0:
		return fmt.Errorf("%w: rvo_time_horizon must be > 0", ErrInvalid)
	case p.TimeStep <= 0:
		return fmt.Errorf("%w: rvo_time_step must be > 0", ErrInvalid)
	}

	a := cfg.API
	switch {
	case strings.TrimSpace(a.Addr) == "":
		return fmt.Errorf("%w: http_addr is required", ErrInvalid)
	case a.CommandRate <= 0:
		return fmt.Errorf("%w: command_rate must be > 0", ErrInvalid)
	case a.CommandBurst <= 0:
		return fmt.Errorf("%w: command_burst must be > 0", ErrInvalid)
	case a.CommandTimeout <= 0:
		return fmt.Errorf("%w: command_timeout must be > 0", ErrInvalid)
	}

	m := cfg.Motion
	if m.QueueSize <= 0 {
		return fmt.Errorf("%w: motion_queue_size must be > 0", ErrInvalid)
	}
	seen := make(map[string]bool, len(m.Endpoints))
	for i, ep := range m.Endpoints {
		switch {
		case ep.Addr == "":
			return fmt.Errorf("%w: motion_endpoints[%d] missing addr", ErrInvalid, i)
		case ep.AgentID != motion.Broadcast && !known[ep.AgentID]:
			return fmt.Errorf("%w: motion_endpoints[%d] references unknown agent %q", ErrInvalid, i, ep.AgentID)
		case seen[ep.AgentID]:
			return fmt.Errorf("%w: duplicate motion endpoint for %q", ErrInvalid, ep.AgentID)
		}
		seen[ep.AgentID] = true
	}
	return nil
}
