// Package api is the HTTP surface of the coordinator: command intake, agent
// and feedback views, a websocket feedback stream and prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Config struct {
	Addr         string
	CORSOrigins  []string
	CommandRate  float64
	CommandBurst int
	// CommandTimeout bounds how long a command waits for a worker.
	CommandTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CommandRate:    20,
		CommandBurst:   10,
		CommandTimeout: 2 * time.Second,
	}
}

// LinkReporter exposes motion link health; *motion.Client implements it.
type LinkReporter interface {
	Status() []motion.LinkStatus
}

type Server struct {
	cfg     Config
	coord   *coordinator.Coordinator
	hub     *FeedbackHub
	links   LinkReporter
	limiter *rate.Limiter
	router  *gin.Engine
	started time.Time
}

// New builds the router. hub and links may be nil.
func New(cfg Config, coord *coordinator.Coordinator, hub *FeedbackHub, links LinkReporter) *Server {
	def := DefaultConfig()
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = def.CommandRate
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = def.CommandBurst
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}

	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.InitLogger("swarmctl")))
	r.Use(observability.RequestMetricsMiddleware("swarmctl"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		coord:   coord,
		hub:     hub,
		links:   links,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandRate), cfg.CommandBurst),
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func (s *Server) HTTPRouter() *gin.Engine { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("api.Server.Run listening addr=%s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logs.Infof("api.Server.Run stopped addr=%s", s.cfg.Addr)
		return nil
	}
}

// limitCommands rejects bursts beyond the configured command rate.
func (s *Server) limitCommands(c *gin.Context) {
	if !s.limiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "command rate exceeded"})
		return
	}
	c.Next()
}
