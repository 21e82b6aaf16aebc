package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Quaternion is the JSON form of an orientation.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AgentView is the JSON form of one agent's state.
type AgentView struct {
	ID              string              `json:"id"`
	FlightState     fleet.FlightState   `json:"flight_state"`
	Position        coordinator.Point   `json:"position"`
	Orientation     Quaternion          `json:"orientation"`
	Attitude        fleet.Euler         `json:"attitude"`
	Velocity        coordinator.Point   `json:"velocity"`
	Targets         []coordinator.Point `json:"targets"`
	PreviousTarget  coordinator.Point   `json:"previous_target"`
	Completed       bool                `json:"completed"`
	RadioConnection bool                `json:"radio_connection"`
	MissionCapable  bool                `json:"mission_capable"`
	Timestamp       time.Time           `json:"timestamp"`
}

func viewOf(s fleet.AgentState) AgentView {
	targets := make([]coordinator.Point, 0, s.Targets.Len())
	for _, p := range s.Targets.Points() {
		targets = append(targets, coordinator.PointOf(p))
	}
	return AgentView{
		ID:              s.ID,
		FlightState:     s.FlightState,
		Position:        coordinator.PointOf(s.Position),
		Orientation:     Quaternion{W: s.Orientation.Real, X: s.Orientation.Imag, Y: s.Orientation.Jmag, Z: s.Orientation.Kmag},
		Attitude:        fleet.EulerFromQuat(s.Orientation),
		Velocity:        coordinator.PointOf(s.Velocity),
		Targets:         targets,
		PreviousTarget:  coordinator.PointOf(s.PreviousTarget),
		Completed:       s.Completed,
		RadioConnection: s.RadioConnection,
		MissionCapable:  s.MissionCapable,
		Timestamp:       s.Timestamp,
	}
}

type historyView struct {
	Agent    AgentView   `json:"agent"`
	Attitude fleet.Euler `json:"attitude"`
}

type missionCapableRequest struct {
	MissionCapable *bool `json:"mission_capable"`
}

func (s *Server) registerRoutes() {
	r := s.router
	reg := s.coord.Registry()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "swarmctl",
			"agents":  reg.Len(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/agents", func(c *gin.Context) {
		snap := reg.Snapshot()
		out := make([]AgentView, 0, len(snap))
		for _, a := range snap {
			out = append(out, viewOf(a))
		}
		c.JSON(http.StatusOK, gin.H{"agents": out})
	})

	r.GET("/agents/:id", func(c *gin.Context) {
		a, err := reg.Lookup(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, viewOf(a))
	})

	r.GET("/agents/:id/history", func(c *gin.Context) {
		id := c.Param("id")
		records, ok := reg.History(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent " + id})
			return
		}
		out := make([]historyView, 0, len(records))
		for _, rec := range records {
			out = append(out, historyView{Agent: viewOf(rec.State), Attitude: rec.Attitude})
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "history": out})
	})

	r.PUT("/agents/:id/mission_capable", func(c *gin.Context) {
		var req missionCapableRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.MissionCapable == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"mission_capable\": bool}"})
			return
		}
		id := c.Param("id")
		if !reg.SetMissionCapable(id, *req.MissionCapable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent " + id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "mission_capable": *req.MissionCapable})
	})

	r.POST("/commands", s.limitCommands, s.postCommand)

	r.GET("/feedback", func(c *gin.Context) {
		fb, ok := s.coord.Feedback().Latest()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no tick has completed yet"})
			return
		}
		c.JSON(http.StatusOK, fb)
	})

	r.GET("/targets", func(c *gin.Context) {
		fb, ok := s.coord.Feedback().Latest()
		if !ok {
			fb = coordinator.BuildFeedback(reg.Snapshot(), 0, time.Now())
		}
		c.JSON(http.StatusOK, fb.TargetsGeoJSON())
	})

	r.GET("/motion/links", func(c *gin.Context) {
		if s.links == nil {
			c.JSON(http.StatusOK, gin.H{"links": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"links": s.links.Status()})
	})

	if s.hub != nil {
		r.GET("/ws/feedback", s.hub.serveWS)
	}
}

func (s *Server) postCommand(c *gin.Context) {
	var env coordinator.CommandEnv
	if err := c.ShouldBindJSON(&env); err != nil {
		logs.Warnf("api.Server.postCommand bad body err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Set(observability.CtxCommandVerb, env.Verb)
	cmd, err := env.Command()
	if err != nil {
		c.Set(observability.CtxCommandOutcome, "rejected")
		logs.Warnf("api.Server.postCommand rejected verb=%q err=%v", env.Verb, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CommandTimeout)
	defer cancel()
	res, err := s.coord.Submit(ctx, cmd)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Set(observability.CtxCommandOutcome, res.Outcome())
	c.JSON(http.StatusOK, res)
}
