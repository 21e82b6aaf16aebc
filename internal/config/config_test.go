package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
agents = ["cf1", " cf2 "]
tick_period = "50ms"
max_velocity = 0.8
connection_timeout = "0s"
communication_radius = 1.5
http_addr = "127.0.0.1:9090"
nats_url = "nats://127.0.0.1:4222"
nats_subject_prefix = "lab"
motion_redial_initial = "100ms"

[[motion_endpoints]]
agent_id = "cf1"
addr = "10.0.0.1:7000"

[[motion_endpoints]]
agent_id = "*"
addr = "10.0.0.9:7000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Agents) != 2 || cfg.Agents[1] != "cf2" {
		t.Fatalf("unexpected agents: %v", cfg.Agents)
	}
	if cfg.Coordinator.TickPeriod != 50*time.Millisecond {
		t.Fatalf("unexpected tick period: %s", cfg.Coordinator.TickPeriod)
	}
	if cfg.Coordinator.MaxVelocity != 0.8 || cfg.Planner.MaxVelocity != 0.8 {
		t.Fatalf("max_velocity not shared: coord=%v planner=%v", cfg.Coordinator.MaxVelocity, cfg.Planner.MaxVelocity)
	}
	if cfg.Coordinator.ConnectionTimeout != 0 {
		t.Fatalf("expected watchdog disabled, got %s", cfg.Coordinator.ConnectionTimeout)
	}
	if cfg.Coordinator.ReachedThreshold != Default().Coordinator.ReachedThreshold {
		t.Fatalf("undefined key should keep default, got %v", cfg.Coordinator.ReachedThreshold)
	}
	if cfg.Planner.CommunicationRadius != 1.5 || cfg.API.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected planner/api config: %+v %+v", cfg.Planner, cfg.API)
	}
	if !cfg.NATSEnabled || cfg.NATS.SubjectPrefix != "lab" {
		t.Fatalf("unexpected nats config: enabled=%v %+v", cfg.NATSEnabled, cfg.NATS)
	}
	if !cfg.MotionEnabled() || len(cfg.Motion.Endpoints) != 2 || cfg.Motion.Endpoints[1].AgentID != motion.Broadcast {
		t.Fatalf("unexpected endpoints: %+v", cfg.Motion.Endpoints)
	}
	if cfg.Motion.Backoff.InitialDelay != 100*time.Millisecond || cfg.Motion.Backoff.MaxDelay != motion.DefaultBackoff().MaxDelay {
		t.Fatalf("unexpected backoff: %+v", cfg.Motion.Backoff)
	}
}

func TestLoadMinimalDisablesOptionalSurfaces(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, `agents = ["cf1"]`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NATSEnabled || cfg.MotionEnabled() {
		t.Fatalf("expected nats and motion endpoints disabled: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"no agents":        `agents = []`,
		"duplicate agent":  `agents = ["cf1", "cf1"]`,
		"reserved id":      `agents = ["all"]`,
		"zero velocity":    "agents = [\"cf1\"]\nmax_velocity = 0.0",
		"negative timeout": "agents = [\"cf1\"]\nconnection_timeout = \"-1s\"",
		"bad duration":     "agents = [\"cf1\"]\ntick_period = \"soon\"",
		"zero radius":      "agents = [\"cf1\"]\ncommunication_radius = 0.0",
		"unknown key":      "agents = [\"cf1\"]\nwarp_factor = 9",
		"unknown endpoint": "agents = [\"cf1\"]\n[[motion_endpoints]]\nagent_id = \"cf7\"\naddr = \"x:1\"",
		"endpoint no addr": "agents = [\"cf1\"]\n[[motion_endpoints]]\nagent_id = \"cf1\"",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template should load: %v", err)
	}
	def := Default()
	if len(cfg.Agents) != 3 || cfg.Coordinator != def.Coordinator || cfg.Planner != def.Planner {
		t.Fatalf("template drifted from defaults: %+v", cfg)
	}
	if cfg.NATSEnabled || cfg.MotionEnabled() {
		t.Fatalf("template should not enable nats or motion endpoints")
	}
}
