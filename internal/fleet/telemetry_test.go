package fleet

import (
	"math"
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/testutil/testlog"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestApplyPoseMarksConnectionAndRecordsHistory(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01")

	for i := 1; i <= 5; i++ {
		ok := r.ApplyPose("cf01", Pose{
			Position:    r3.Vec{X: float64(i)},
			Orientation: quat.Number{Real: 1},
			Stamp:       time.Unix(int64(i), 0),
		})
		if !ok {
			t.Fatalf("pose %d rejected", i)
		}
	}

	a, _ := r.Lookup("cf01")
	if !a.RadioConnection {
		t.Fatalf("expected radio connection after pose")
	}
	if a.Position.X != 5 || !a.Timestamp.Equal(time.Unix(5, 0)) {
		t.Fatalf("pose not applied: %+v", a)
	}

	hist, ok := r.History("cf01")
	if !ok {
		t.Fatalf("history missing")
	}
	if len(hist) != 3 {
		t.Fatalf("history must be capped at 3, got %d", len(hist))
	}
	if hist[0].State.Position.X != 3 || hist[2].State.Position.X != 5 {
		t.Fatalf("oldest records must be dropped first: %v %v", hist[0].State.Position, hist[2].State.Position)
	}
}

func TestTelemetryIgnoresUnknownAgent(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01")
	if r.ApplyPose("ghost", Pose{}) {
		t.Fatalf("unknown pose must be ignored")
	}
	if r.ApplyVelocity("ghost", r3.Vec{X: 1}) {
		t.Fatalf("unknown velocity must be ignored")
	}
	if _, ok := r.History("ghost"); ok {
		t.Fatalf("unknown history must not resolve")
	}
}

func TestApplyVelocityOnlyTouchesVelocity(t *testing.T) {
	testlog.Start(t)
	r := newTestRegistry(t, "cf01")
	r.ApplyVelocity("cf01", r3.Vec{Z: -0.5})
	a, _ := r.Lookup("cf01")
	if a.Velocity != (r3.Vec{Z: -0.5}) {
		t.Fatalf("unexpected velocity: %v", a.Velocity)
	}
	if a.RadioConnection {
		t.Fatalf("velocity feed must not mark radio connection")
	}
}

func TestEulerFromQuatYaw(t *testing.T) {
	half := math.Pi / 4
	e := EulerFromQuat(quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)})
	if math.Abs(e.Yaw-math.Pi/2) > 1e-9 || math.Abs(e.Roll) > 1e-9 || math.Abs(e.Pitch) > 1e-9 {
		t.Fatalf("unexpected euler for 90deg yaw: %+v", e)
	}
}

func TestEulerFromQuatGimbalLock(t *testing.T) {
	half := math.Pi / 4
	e := EulerFromQuat(quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)})
	if math.Abs(e.Pitch-math.Pi/2) > 1e-6 {
		t.Fatalf("expected pitch pi/2 at singularity, got %+v", e)
	}
	if math.IsNaN(e.Roll) || math.IsNaN(e.Yaw) {
		t.Fatalf("singular conversion must produce defined angles: %+v", e)
	}
}

func TestFlightStateText(t *testing.T) {
	b, err := MoveVelocity.MarshalText()
	if err != nil || string(b) != "MOVE_VELOCITY" {
		t.Fatalf("unexpected text: %q %v", b, err)
	}
	var s FlightState
	if err := s.UnmarshalText([]byte("hover")); err != nil || s != Hover {
		t.Fatalf("unexpected parse: %v %v", s, err)
	}
}
