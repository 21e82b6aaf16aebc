package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/swarmctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newLoggedRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(buf).Level(zerolog.DebugLevel)))
	r.Use(RequestMetricsMiddleware("test"))
	r.GET("/agents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/commands", func(c *gin.Context) {
		c.Set(CtxCommandVerb, "goto")
		c.Set(CtxCommandOutcome, "unfinished")
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func lastEvent(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &ev); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return ev
}

func TestRequestLoggerAttachesRouteFields(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newLoggedRouter(&buf)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/agents/cf3", nil))
	ev := lastEvent(t, &buf)
	if ev["route"] != "/agents/:id" || ev["path"] != "/agents/cf3" || ev["agent_id"] != "cf3" || ev["level"] != "info" {
		t.Fatalf("unexpected agent event: %v", ev)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/commands", nil))
	ev = lastEvent(t, &buf)
	if ev["verb"] != "goto" || ev["outcome"] != "unfinished" {
		t.Fatalf("unexpected command event: %v", ev)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newLoggedRouter(&buf)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if ev := lastEvent(t, &buf); ev["level"] != "debug" {
		t.Fatalf("health probe should log at debug: %v", ev)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere/at/all", nil))
	ev := lastEvent(t, &buf)
	if ev["level"] != "warn" || ev["route"] != unmatchedRoute {
		t.Fatalf("unmatched 404 should warn with bounded route label: %v", ev)
	}
}
