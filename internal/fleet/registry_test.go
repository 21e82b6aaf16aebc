package fleet

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/testutil/testlog"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTestRegistry(t *testing.T, ids ...string) *Registry {
	t.Helper()
	r, err := NewRegistry(ids, 3)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestNewRegistryStartsIdleAtIdentityPose(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf02", "cf01")

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "cf01" || ids[1] != "cf02" {
		t.Fatalf("unexpected id order: %v", ids)
	}
	a, err := r.Lookup("cf01")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if a.FlightState != Idle {
		t.Fatalf("expected IDLE, got %s", a.FlightState)
	}
	if a.Orientation != (quat.Number{Real: 1}) {
		t.Fatalf("expected identity orientation, got %v", a.Orientation)
	}
	if a.Velocity != (r3.Vec{}) || a.RadioConnection || !a.Targets.Empty() {
		t.Fatalf("unexpected initial state: %+v", a)
	}
}

func TestNewRegistryRejectsDuplicateAndSentinelIDs(t *testing.T) {
	testlog.Start(t)
	if _, err := NewRegistry([]string{"cf01", "cf01"}, 1); !errors.Is(err, ErrInvalidAgent) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if _, err := NewRegistry([]string{"all"}, 1); !errors.Is(err, ErrInvalidAgent) {
		t.Fatalf("expected sentinel rejection, got %v", err)
	}
}

func TestLookupUnknownAgent(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01")
	if _, err := r.Lookup("cf99"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if r.Update("cf99", func(*AgentState) { t.Fatalf("fn must not run for unknown id") }) {
		t.Fatalf("expected update to report unknown id")
	}
}

func TestLookupReturnsDetachedQueue(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01")
	r.Update("cf01", func(a *AgentState) {
		a.Targets.Push(r3.Vec{X: 1})
	})
	snap, _ := r.Lookup("cf01")
	snap.Targets.Pop()

	again, _ := r.Lookup("cf01")
	if again.Targets.Len() != 1 {
		t.Fatalf("lookup copy mutated registry queue")
	}
}

func TestKinematicsExceptSkipsSelf(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01", "cf02", "cf03")
	r.ApplyVelocity("cf02", r3.Vec{Y: 1})

	others := r.KinematicsExcept("cf01")
	if len(others) != 2 {
		t.Fatalf("expected 2 others, got %d", len(others))
	}
	for _, k := range others {
		if k.ID == "cf01" {
			t.Fatalf("self included in kinematics snapshot")
		}
	}
	if others[0].Velocity != (r3.Vec{Y: 1}) {
		t.Fatalf("unexpected velocity: %v", others[0].Velocity)
	}
}

func TestExpireConnections(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01", "cf02")
	base := time.Unix(100, 0)
	now := base
	r.SetClock(func() time.Time { return now })
	r.ApplyPose("cf01", Pose{Stamp: base})
	now = base.Add(2 * time.Second)
	r.ApplyPose("cf02", Pose{Stamp: base})

	expired := r.ExpireConnections(base.Add(2500*time.Millisecond), time.Second)
	if len(expired) != 1 || expired[0] != "cf01" {
		t.Fatalf("unexpected expired set: %v", expired)
	}
	a, _ := r.Lookup("cf01")
	if a.RadioConnection {
		t.Fatalf("expected cf01 link presumed dead")
	}
	if got := r.ExpireConnections(base.Add(time.Hour), 0); got != nil {
		t.Fatalf("zero timeout must disable expiry, got %v", got)
	}
}

func TestExpireConnectionsUsesReceiptTimeNotStamp(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01")
	now := time.Unix(1700000000, 0)
	r.SetClock(func() time.Time { return now })

	r.ApplyPose("cf01", Pose{Stamp: now.Add(-10 * time.Second)})
	if got := r.ExpireConnections(now, time.Second); got != nil {
		t.Fatalf("fresh pose with stale stamp must stay connected, expired %v", got)
	}
	a, _ := r.Lookup("cf01")
	if !a.RadioConnection || !a.LastSeen.Equal(now) || !a.Timestamp.Equal(now.Add(-10*time.Second)) {
		t.Fatalf("unexpected receipt bookkeeping: %+v", a)
	}

	r.ApplyPose("cf01", Pose{Stamp: now.Add(time.Hour)})
	if got := r.ExpireConnections(now.Add(1500*time.Millisecond), time.Second); len(got) != 1 {
		t.Fatalf("future stamp must not keep a silent link alive, expired %v", got)
	}
}
