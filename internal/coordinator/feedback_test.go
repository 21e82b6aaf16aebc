package coordinator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

type captureSink struct{ got []Feedback }

func (s *captureSink) PublishFeedback(fb Feedback) { s.got = append(s.got, fb) }

func TestTickPublishesFeedbackWithTargetPaths(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, []string{"cf1", "cf2"}, nil)
	sink := &captureSink{}
	h.c.sinks = append(h.c.sinks, sink)

	h.place(t, "cf1", r3.Vec{X: 0.2, Y: 0.1, Z: 0.5})
	h.reg.SetMissionCapable("cf2", true)
	for _, g := range []r3.Vec{{X: 4, Z: 1}, {X: 4, Y: 4, Z: 1}} {
		h.c.Dispatch(Command{Verb: VerbGoToVelocity, AgentIDs: []string{"cf1"}, Goal: g})
	}

	fb := h.c.Tick()
	if len(sink.got) != 1 || sink.got[0].Tick != fb.Tick {
		t.Fatalf("sink not published: %+v", sink.got)
	}
	if len(fb.Agents) != 2 || fb.Agents[0].ID != "cf1" || !fb.Agents[0].Connected || fb.Agents[0].FlightState != fleet.MoveVelocity {
		t.Fatalf("unexpected agent feedback: %+v", fb.Agents)
	}
	if !fb.Agents[1].MissionCapable || fb.Agents[1].Connected {
		t.Fatalf("unexpected cf2 feedback: %+v", fb.Agents[1])
	}
	if len(fb.Targets) != 1 {
		t.Fatalf("only cf1 has a queue, got %d paths", len(fb.Targets))
	}
	path := fb.Targets[0]
	if len(path.Points) != 3 || path.Points[0] != (Point{X: 0.2, Y: 0.1, Z: 0.5}) || path.Points[2] != (Point{X: 4, Y: 4, Z: 1}) {
		t.Fatalf("unexpected path: %+v", path)
	}

	b, err := json.Marshal(fb)
	if err != nil {
		t.Fatalf("marshal feedback: %v", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	agents := raw["agents"].([]any)
	if agents[0].(map[string]any)["flight_state"] != "MOVE_VELOCITY" {
		t.Fatalf("flight_state should marshal as text: %s", b)
	}
}

func TestTargetsGeoJSON(t *testing.T) {
	testlog.Start(t)
	fb := Feedback{
		Tick:  1,
		Stamp: time.Unix(0, 0),
		Targets: []TargetPath{{
			AgentID: "cf3",
			Points:  []Point{{X: 0, Y: 0, Z: 0.3}, {X: 1, Y: 2, Z: 1}},
		}},
	}
	fc := fb.TargetsGeoJSON()
	if len(fc.Features) != 1 {
		t.Fatalf("expected one feature, got %d", len(fc.Features))
	}
	f := fc.Features[0]
	line, ok := f.Geometry.(orb.LineString)
	if !ok || len(line) != 2 || line[1] != (orb.Point{1, 2}) {
		t.Fatalf("unexpected geometry: %#v", f.Geometry)
	}
	if f.Properties.MustString("agent_id") != "cf3" || f.Properties["waypoints"] != 1 {
		t.Fatalf("unexpected properties: %+v", f.Properties)
	}
	if _, err := fc.MarshalJSON(); err != nil {
		t.Fatalf("marshal geojson: %v", err)
	}
}
