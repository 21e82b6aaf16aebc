package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
)

func TestParseAgentIDsAndGoal(t *testing.T) {
	testlog.Start(t)
	ids := parseAgentIDs(" cf1, ,cf2 ")
	if len(ids) != 2 || ids[0] != "cf1" || ids[1] != "cf2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	goal, err := parseGoal("1.5, -2 0.25")
	if err != nil {
		t.Fatalf("parse goal: %v", err)
	}
	if goal != (coordinator.Point{X: 1.5, Y: -2, Z: 0.25}) {
		t.Fatalf("unexpected goal: %+v", goal)
	}
	if _, err := parseGoal("1,2"); err == nil {
		t.Fatalf("expected error for short goal")
	}
	if !parseYes("Y") || parseYes("") {
		t.Fatalf("unexpected yes parsing")
	}
}

func TestRemoteSwarmSendCommand(t *testing.T) {
	testlog.Start(t)
	var got coordinator.CommandEnv
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/commands" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"verb":"land","requested":["cf1"],"acknowledged":["cf1"],"complete":true}`))
	}))
	defer srv.Close()

	res, err := NewRemoteSwarm(srv.URL+"/").SendCommand(coordinator.CommandEnv{Verb: "land", AgentIDs: coordinator.AgentList{"cf1"}})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Verb != "land" || len(got.AgentIDs) != 1 {
		t.Fatalf("server saw %+v", got)
	}
	if !res.Complete || res.Outcome() != coordinator.OutcomeSent {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRemoteSwarmSurfacesErrors(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"no tick has completed yet"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteSwarm(srv.URL).Feedback()
	if err == nil || !strings.Contains(err.Error(), "no tick has completed yet") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestAppSeedsDefaultTargetAndExits(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "swarm.toml")
	var out bytes.Buffer
	app := NewApp(path, strings.NewReader("1\nexit\n"), &out)
	if err := app.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "local http://127.0.0.1:8080") {
		t.Fatalf("expected default target listing, got:\n%s", out.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "http://127.0.0.1:8080") {
		t.Fatalf("default target not persisted:\n%s", data)
	}
}
