package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/danmuck/swarmctl/internal/config"
	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
)

func TestRunFailsOnMissingConfig(t *testing.T) {
	testlog.Start(t)
	if err := run(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("template should load: %v", err)
	}
	cfg.Agents = nil
	if err := config.Validate(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestBusSinkWithoutBusIsNoop(t *testing.T) {
	testlog.Start(t)
	var s busSink
	s.PublishFeedback(coordinator.Feedback{Tick: 1})
}
