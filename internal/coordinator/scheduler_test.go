package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFireTickSkipsWhilePreviousRuns(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, []string{"cf1"}, nil)
	h.c.ticking.Store(true)
	if h.c.fireTick() {
		t.Fatalf("tick must be skipped while one is running")
	}
	if h.c.pool.Pending() != 0 {
		t.Fatalf("skipped tick must not be queued")
	}
	h.c.ticking.Store(false)
	if !h.c.fireTick() {
		t.Fatalf("expected tick to be queued")
	}
	if h.c.fireTick() {
		t.Fatalf("queued tick counts as running")
	}
}

func TestPoolSurvivesPanickingJob(t *testing.T) {
	testlog.Start(t)
	p := NewPool(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	var ran atomic.Bool
	done := make(chan struct{})
	if err := p.Submit(ctx, func() { panic("boom") }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Submit(ctx, func() { ran.Store(true); close(done) }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not recover from panic")
	}
	if !ran.Load() {
		t.Fatalf("second job did not run")
	}
}

func TestTrySubmitReportsFullQueue(t *testing.T) {
	testlog.Start(t)
	p := NewPool(1, 1)
	if !p.TrySubmit(func() {}) {
		t.Fatalf("first submit should fit")
	}
	if p.TrySubmit(func() {}) {
		t.Fatalf("second submit should not fit")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Submit(ctx, func() {}); err == nil {
		t.Fatalf("expected context error on full queue")
	}
}

func TestRunTicksAndServesCommands(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, []string{"cf1"}, func(c *Config) {
		c.TickPeriod = 5 * time.Millisecond
		c.MaxVelocity = 1
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	res, err := h.c.Submit(ctx, Command{Verb: VerbGoToVelocity, AgentIDs: []string{"cf1"}, Goal: r3.Vec{X: 0.5}})
	if err != nil || !res.Complete {
		t.Fatalf("submit: res=%+v err=%v", res, err)
	}
	if !h.c.IngestPose("cf1", fleet.Pose{Position: r3.Vec{X: 0.49}, Stamp: time.Now()}) {
		t.Fatalf("pose dropped")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if s := h.state(t, "cf1"); s.FlightState == fleet.Hover && s.Completed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent never settled into HOVER: %+v", h.state(t, "cf1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if fb, ok := h.c.Feedback().Latest(); !ok || fb.Tick == 0 {
		t.Fatalf("expected published feedback")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
