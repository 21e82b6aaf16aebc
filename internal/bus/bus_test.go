package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

type fakeIntake struct {
	poses    map[string]fleet.Pose
	vels     map[string]r3.Vec
	capable  map[string]bool
	commands []coordinator.Command
}

func newFakeIntake() *fakeIntake {
	return &fakeIntake{
		poses:   map[string]fleet.Pose{},
		vels:    map[string]r3.Vec{},
		capable: map[string]bool{},
	}
}

func (f *fakeIntake) IngestPose(id string, p fleet.Pose) bool      { f.poses[id] = p; return true }
func (f *fakeIntake) IngestVelocity(id string, v r3.Vec) bool      { f.vels[id] = v; return true }
func (f *fakeIntake) IngestMissionCapable(id string, c bool) bool { f.capable[id] = c; return true }
func (f *fakeIntake) Submit(_ context.Context, cmd coordinator.Command) (coordinator.DispatchResult, error) {
	f.commands = append(f.commands, cmd)
	return coordinator.DispatchResult{Verb: cmd.Verb, Requested: cmd.AgentIDs, Acknowledged: cmd.AgentIDs, Complete: true}, nil
}

func newTestBus(in Intake) *Bus {
	b := NewFromConn(nil, Config{SubjectPrefix: "lab."}, in)
	b.now = func() time.Time { return time.Unix(10, 0) }
	return b
}

func TestHandleTelemetryRoutesFeeds(t *testing.T) {
	testlog.Start(t)
	in := newFakeIntake()
	b := newTestBus(in)

	pose := `{"position":{"x":1,"y":2,"z":0.5},"orientation":{"w":0.7071,"z":0.7071},"stamp_ns":1700000000000000000}`
	if err := b.HandleTelemetry("lab.telemetry.cf1.pose", []byte(pose)); err != nil {
		t.Fatalf("pose: %v", err)
	}
	got := in.poses["cf1"]
	if got.Position != (r3.Vec{X: 1, Y: 2, Z: 0.5}) || got.Orientation != (quat.Number{Real: 0.7071, Kmag: 0.7071}) {
		t.Fatalf("unexpected pose: %+v", got)
	}
	if !got.Stamp.Equal(time.Unix(0, 1700000000000000000)) {
		t.Fatalf("unexpected stamp: %v", got.Stamp)
	}

	if err := b.HandleTelemetry("lab.telemetry.cf2.pose", []byte(`{"position":{"x":0,"y":0,"z":0}}`)); err != nil {
		t.Fatalf("pose without orientation: %v", err)
	}
	if p := in.poses["cf2"]; p.Orientation != (quat.Number{Real: 1}) || !p.Stamp.Equal(time.Unix(10, 0)) {
		t.Fatalf("expected identity orientation and local stamp: %+v", p)
	}

	if err := b.HandleTelemetry("lab.telemetry.cf1.velocity", []byte(`{"linear":{"x":0.1,"y":0,"z":-0.2}}`)); err != nil {
		t.Fatalf("velocity: %v", err)
	}
	if in.vels["cf1"] != (r3.Vec{X: 0.1, Z: -0.2}) {
		t.Fatalf("unexpected velocity: %+v", in.vels["cf1"])
	}

	if err := b.HandleTelemetry("lab.telemetry.cf1.status", []byte(`{"mission_capable":true}`)); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !in.capable["cf1"] {
		t.Fatalf("mission_capable not applied")
	}
}

func TestHandleTelemetryRejectsMalformedInput(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(newFakeIntake())
	for _, subject := range []string{"other.telemetry.cf1.pose", "lab.telemetry.pose", "lab.telemetry.cf1.battery"} {
		if err := b.HandleTelemetry(subject, []byte(`{}`)); !errors.Is(err, ErrBadSubject) {
			t.Fatalf("subject %q: expected ErrBadSubject, got %v", subject, err)
		}
	}
	if err := b.HandleTelemetry("lab.telemetry.cf1.pose", []byte(`{`)); err == nil {
		t.Fatalf("expected json error")
	}
}

func TestHandleCommandDispatchesAndReplies(t *testing.T) {
	testlog.Start(t)
	in := newFakeIntake()
	b := newTestBus(in)

	reply, err := b.HandleCommand([]byte(`{"verb":"land","agent_ids":["cf1","cf2"]}`))
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	var res struct {
		Verb     string `json:"verb"`
		Complete bool   `json:"complete"`
	}
	if err := json.Unmarshal(reply, &res); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if res.Verb != "land" || !res.Complete || len(in.commands) != 1 {
		t.Fatalf("unexpected reply %s commands=%d", reply, len(in.commands))
	}

	if _, err := b.HandleCommand([]byte(`{"verb":"barrel_roll","agent_ids":["cf1"]}`)); !errors.Is(err, coordinator.ErrUnknownVerb) {
		t.Fatalf("expected ErrUnknownVerb, got %v", err)
	}
	if len(in.commands) != 1 {
		t.Fatalf("unknown verb must not reach the coordinator")
	}
}

func TestSubjectsUsePrefix(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(newFakeIntake())
	if b.FeedbackSubject() != "lab.feedback" || b.CommandSubject() != "lab.user" {
		t.Fatalf("unexpected subjects %q %q", b.FeedbackSubject(), b.CommandSubject())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on double close, got %v", err)
	}
	if err := b.Start(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on start after close, got %v", err)
	}
	b.PublishFeedback(coordinator.Feedback{})
}
