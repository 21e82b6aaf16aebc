package motion

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/observability"
	"github.com/danmuck/swarmctl/internal/protocol/frame"
	"golang.org/x/sync/errgroup"
)

var ErrNoEndpoints = errors.New("motion: no endpoints configured")

// Endpoint maps one agent id, or Broadcast, to a motion service address.
type Endpoint struct {
	AgentID string
	Addr    string
}

type ClientConfig struct {
	Endpoints    []Endpoint
	QueueSize    int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Backoff      BackoffConfig
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		QueueSize:    64,
		DialTimeout:  2 * time.Second,
		WriteTimeout: time.Second,
		Backoff:      DefaultBackoff(),
	}
}

// LinkStatus is a point-in-time view of one endpoint connection.
type LinkStatus struct {
	AgentID   string `json:"agent_id"`
	Addr      string `json:"addr"`
	Connected bool   `json:"connected"`
	Sent      uint64 `json:"sent"`
	Dropped   uint64 `json:"dropped"`
}

// Client keeps one connection per endpoint and writes requests to it from a
// dedicated goroutine. Send never blocks: a request is dropped when its link
// is down or its queue is full, and dropped requests are never retried.
type Client struct {
	cfg       ClientConfig
	links     map[string]*link
	broadcast *link
	ordered   []*link
	nextID    atomic.Uint64
	noRoute   atomic.Uint64
}

type link struct {
	agentID string
	addr    string
	queue   chan Request
	up      atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	def := DefaultClientConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	c := &Client{cfg: cfg, links: make(map[string]*link, len(cfg.Endpoints))}
	for _, ep := range cfg.Endpoints {
		id := strings.TrimSpace(ep.AgentID)
		addr := strings.TrimSpace(ep.Addr)
		if id == "" || addr == "" {
			return nil, fmt.Errorf("motion: endpoint requires agent_id and addr: %+v", ep)
		}
		l := &link{agentID: id, addr: addr, queue: make(chan Request, cfg.QueueSize)}
		if id == Broadcast {
			if c.broadcast != nil {
				return nil, fmt.Errorf("motion: duplicate broadcast endpoint %q", addr)
			}
			c.broadcast = l
		} else {
			if _, dup := c.links[id]; dup {
				return nil, fmt.Errorf("motion: duplicate endpoint for agent %q", id)
			}
			c.links[id] = l
		}
		c.ordered = append(c.ordered, l)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].agentID < c.ordered[j].agentID })
	return c, nil
}

// Send routes r to its agent's link. Broadcast requests go to the broadcast
// endpoint when one is configured, otherwise to every agent link.
func (c *Client) Send(r Request) {
	if r.IsBroadcast() {
		if c.broadcast != nil {
			c.enqueue(c.broadcast, r)
			return
		}
		for _, l := range c.ordered {
			c.enqueue(l, r)
		}
		return
	}
	l, ok := c.links[r.AgentID]
	if !ok {
		c.noRoute.Add(1)
		observability.RecordMotionRequest(r.Kind.String(), "no_route")
		logs.Debugf("motion.Client.Send no endpoint agent=%q kind=%s", r.AgentID, r.Kind)
		return
	}
	c.enqueue(l, r)
}

func (c *Client) enqueue(l *link, r Request) {
	if !l.up.Load() {
		l.dropped.Add(1)
		observability.RecordMotionRequest(r.Kind.String(), "dropped_down")
		return
	}
	select {
	case l.queue <- r:
	default:
		l.dropped.Add(1)
		observability.RecordMotionRequest(r.Kind.String(), "dropped_full")
		logs.Warnf("motion.Client.Send queue full agent=%q kind=%s", l.agentID, r.Kind)
	}
}

// Run dials every endpoint and pumps its queue until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range c.ordered {
		l := l
		g.Go(func() error {
			c.runLink(ctx, l)
			return nil
		})
	}
	return g.Wait()
}

func (c *Client) Status() []LinkStatus {
	out := make([]LinkStatus, 0, len(c.ordered))
	for _, l := range c.ordered {
		out = append(out, LinkStatus{
			AgentID:   l.agentID,
			Addr:      l.addr,
			Connected: l.up.Load(),
			Sent:      l.sent.Load(),
			Dropped:   l.dropped.Load(),
		})
	}
	return out
}

// Unrouted counts requests addressed to agents without an endpoint.
func (c *Client) Unrouted() uint64 { return c.noRoute.Load() }

func (c *Client) runLink(ctx context.Context, l *link) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	attempt := 0
	for {
		if attempt > 0 {
			delay := NextBackoffDelay(c.cfg.Backoff, attempt, rng)
			if !sleepCtx(ctx, delay) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		conn, err := dialer.DialContext(ctx, "tcp", l.addr)
		if err != nil {
			attempt++
			logs.Warnf("motion.Client.runLink dial failed agent=%q addr=%s attempt=%d err=%v", l.agentID, l.addr, attempt, err)
			continue
		}
		attempt = 0
		l.up.Store(true)
		logs.Infof("motion.Client.runLink connected agent=%q addr=%s", l.agentID, l.addr)

		err = c.pump(ctx, l, conn)
		l.up.Store(false)
		_ = conn.Close()
		dropped := l.drain()
		if ctx.Err() != nil {
			return
		}
		logs.Warnf("motion.Client.runLink link lost agent=%q addr=%s dropped=%d err=%v", l.agentID, l.addr, dropped, err)
		attempt = 1
	}
}

func (c *Client) pump(ctx context.Context, l *link, conn net.Conn) error {
	limits := frame.DefaultLimits()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-l.queue:
			f, err := EncodeFrame(r, c.nextID.Add(1))
			if err != nil {
				l.dropped.Add(1)
				observability.RecordMotionRequest(r.Kind.String(), "invalid")
				logs.Errf("motion.Client.pump encode agent=%q kind=%s err=%v", l.agentID, r.Kind, err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := frame.WriteFrame(conn, f, limits); err != nil {
				l.dropped.Add(1)
				observability.RecordMotionRequest(r.Kind.String(), "write_failed")
				return err
			}
			l.sent.Add(1)
			observability.RecordMotionRequest(r.Kind.String(), "sent")
		}
	}
}

// drain discards whatever was queued while the link was going down.
func (l *link) drain() int {
	n := 0
	for {
		select {
		case r := <-l.queue:
			n++
			l.dropped.Add(1)
			observability.RecordMotionRequest(r.Kind.String(), "dropped_down")
		default:
			return n
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LogSender stands in for a Client when no endpoints are configured: every
// request is logged and counted, nothing leaves the process.
type LogSender struct{}

func (LogSender) Send(r Request) {
	observability.RecordMotionRequest(r.Kind.String(), "logged")
	switch r.Kind {
	case KindVelocityWorld:
		logs.Tracef("motion.LogSender.Send kind=%s agent=%q vel=(%.3f %.3f %.3f) height=%.3f",
			r.Kind, r.AgentID, r.Velocity.X, r.Velocity.Y, r.Velocity.Z, r.Height)
	default:
		logs.Infof("motion.LogSender.Send kind=%s agent=%q group=%d height=%.3f goal=(%.3f %.3f %.3f) duration=%s",
			r.Kind, r.AgentID, r.GroupMask, r.Height, r.Goal.X, r.Goal.Y, r.Goal.Z, r.Duration.Std())
	}
}

var (
	_ Sender = (*Client)(nil)
	_ Sender = LogSender{}
)
