// Package config loads swarmctl's TOML configuration. Defaults come from each
// component's DefaultConfig; a file key only overrides its default when the
// file actually defines it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalid = errors.New("config: invalid")

// File mirrors config.toml one key per field. Durations are Go duration
// strings ("100ms", "2s").
type File struct {
	Agents          []string `toml:"agents"`
	HistoryCapacity int      `toml:"history_capacity"`

	TickPeriod  string `toml:"tick_period"`
	WorkerCount int    `toml:"worker_count"`
	QueueSize   int    `toml:"queue_size"`

	MaxVelocity         float64 `toml:"max_velocity"`
	ReachedThreshold    float64 `toml:"reached_threshold"`
	TakeoffHeight       float64 `toml:"takeoff_height"`
	TakeoffLandVelocity float64 `toml:"takeoff_land_velocity"`
	ConnectionTimeout   string  `toml:"connection_timeout"`

	CommunicationRadius float64 `toml:"communication_radius"`
	ProtectedZone       float64 `toml:"protected_zone"`
	RVOTimeHorizon      float64 `toml:"rvo_time_horizon"`
	RVOTimeStep         float64 `toml:"rvo_time_step"`

	HTTPAddr       string   `toml:"http_addr"`
	CORSOrigins    []string `toml:"cors_origins"`
	CommandRate    float64  `toml:"command_rate"`
	CommandBurst   int      `toml:"command_burst"`
	CommandTimeout string   `toml:"command_timeout"`

	NATSURL           string `toml:"nats_url,omitempty"`
	NATSSubjectPrefix string `toml:"nats_subject_prefix"`

	MotionQueueSize        int             `toml:"motion_queue_size"`
	MotionDialTimeout      string          `toml:"motion_dial_timeout"`
	MotionWriteTimeout     string          `toml:"motion_write_timeout"`
	MotionRedialInitial    string          `toml:"motion_redial_initial"`
	MotionRedialMultiplier float64         `toml:"motion_redial_multiplier"`
	MotionRedialMax        string          `toml:"motion_redial_max"`
	MotionRedialJitter     bool            `toml:"motion_redial_jitter"`
	MotionEndpoints        []EndpointEntry `toml:"motion_endpoints,omitempty"`
}

// EndpointEntry is one [[motion_endpoints]] table. agent_id "*" names the
// broadcast endpoint.
type EndpointEntry struct {
	AgentID string `toml:"agent_id"`
	Addr    string `toml:"addr"`
}

// Load decodes path and overlays every defined key onto Default().
func Load(path string) (Runtime, error) {
	cfg := Default()

	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Runtime{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Runtime{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}
	if err := overlay(&cfg, raw, meta); err != nil {
		return Runtime{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Runtime{}, err
	}
	return cfg, nil
}

func overlay(cfg *Runtime, raw File, meta toml.MetaData) error {
	if meta.IsDefined("agents") {
		cfg.Agents = trimAll(raw.Agents)
	}
	if meta.IsDefined("history_capacity") {
		cfg.HistoryCapacity = raw.HistoryCapacity
	}

	c := &cfg.Coordinator
	if meta.IsDefined("worker_count") {
		c.Workers = raw.WorkerCount
	}
	if meta.IsDefined("queue_size") {
		c.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("max_velocity") {
		c.MaxVelocity = raw.MaxVelocity
	}
	if meta.IsDefined("reached_threshold") {
		c.ReachedThreshold = raw.ReachedThreshold
	}
	if meta.IsDefined("takeoff_height") {
		c.TakeoffHeight = raw.TakeoffHeight
	}
	if meta.IsDefined("takeoff_land_velocity") {
		c.TakeoffLandVelocity = raw.TakeoffLandVelocity
	}

	p := &cfg.Planner
	if meta.IsDefined("communication_radius") {
		p.CommunicationRadius = raw.CommunicationRadius
	}
	if meta.IsDefined("protected_zone") {
		p.ProtectedZone = raw.ProtectedZone
	}
	if meta.IsDefined("rvo_time_horizon") {
		p.TimeHorizon = raw.RVOTimeHorizon
	}
	if meta.IsDefined("rvo_time_step") {
		p.TimeStep = raw.RVOTimeStep
	}
	// The planner clamps to the same bound the state machine steers with.
	p.MaxVelocity = c.MaxVelocity

	a := &cfg.API
	if meta.IsDefined("http_addr") {
		a.Addr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		a.CORSOrigins = trimAll(raw.CORSOrigins)
	}
	if meta.IsDefined("command_rate") {
		a.CommandRate = raw.CommandRate
	}
	if meta.IsDefined("command_burst") {
		a.CommandBurst = raw.CommandBurst
	}

	if meta.IsDefined("nats_url") {
		cfg.NATS.URL = strings.TrimSpace(raw.NATSURL)
		cfg.NATSEnabled = cfg.NATS.URL != ""
	}
	if meta.IsDefined("nats_subject_prefix") {
		cfg.NATS.SubjectPrefix = strings.TrimSpace(raw.NATSSubjectPrefix)
	}

	m := &cfg.Motion
	if meta.IsDefined("motion_queue_size") {
		m.QueueSize = raw.MotionQueueSize
	}
	if meta.IsDefined("motion_redial_multiplier") {
		m.Backoff.Multiplier = raw.MotionRedialMultiplier
	}
	if meta.IsDefined("motion_redial_jitter") {
		m.Backoff.Jitter = raw.MotionRedialJitter
	}
	if meta.IsDefined("motion_endpoints") {
		m.Endpoints = endpoints(raw.MotionEndpoints)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"tick_period", raw.TickPeriod, &c.TickPeriod},
		{"connection_timeout", raw.ConnectionTimeout, &c.ConnectionTimeout},
		{"command_timeout", raw.CommandTimeout, &a.CommandTimeout},
		{"motion_dial_timeout", raw.MotionDialTimeout, &m.DialTimeout},
		{"motion_write_timeout", raw.MotionWriteTimeout, &m.WriteTimeout},
		{"motion_redial_initial", raw.MotionRedialInitial, &m.Backoff.InitialDelay},
		{"motion_redial_max", raw.MotionRedialMax, &m.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, d.key, err)
		}
		*d.dst = v
	}
	// Commands sent over NATS wait for a worker as long as HTTP ones do.
	cfg.NATS.CommandTimeout = a.CommandTimeout
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
