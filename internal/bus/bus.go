// Package bus binds the coordinator to NATS: per-agent telemetry subjects,
// the operator command subject, and the feedback stream.
//
// Subjects, under a configurable prefix:
//
//	<prefix>.telemetry.<agent>.pose      PoseMsg
//	<prefix>.telemetry.<agent>.velocity  VelocityMsg
//	<prefix>.telemetry.<agent>.status    StatusMsg
//	<prefix>.user                        coordinator.CommandEnv (reply: DispatchResult)
//	<prefix>.feedback                    coordinator.Feedback (published every tick)
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/nats-io/nats.go"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrClosed     = errors.New("bus: closed")
	ErrBadSubject = errors.New("bus: malformed subject")
)

type Config struct {
	URL           string
	Name          string
	SubjectPrefix string
	Timeout       time.Duration
	// CommandTimeout bounds how long a command waits for a worker.
	CommandTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "swarmctl",
		SubjectPrefix:  "swarm",
		Timeout:        5 * time.Second,
		CommandTimeout: 2 * time.Second,
	}
}

// Intake is the coordinator surface the bus feeds.
type Intake interface {
	IngestPose(id string, pose fleet.Pose) bool
	IngestVelocity(id string, v r3.Vec) bool
	IngestMissionCapable(id string, capable bool) bool
	Submit(ctx context.Context, cmd coordinator.Command) (coordinator.DispatchResult, error)
}

// PoseMsg is one pose sample. Orientation is a unit quaternion.
type PoseMsg struct {
	Position    coordinator.Point `json:"position"`
	Orientation struct {
		W float64 `json:"w"`
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	} `json:"orientation"`
	StampNS int64 `json:"stamp_ns"`
}

type VelocityMsg struct {
	Linear coordinator.Point `json:"linear"`
}

type StatusMsg struct {
	MissionCapable bool `json:"mission_capable"`
}

type Bus struct {
	conn   *nats.Conn
	cfg    Config
	intake Intake
	now    func() time.Time

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed atomic.Bool
}

// Connect dials NATS with unlimited reconnects.
func Connect(cfg Config, intake Intake) (*Bus, error) {
	cfg = withDefaults(cfg)
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logs.Warnf("bus.Bus disconnected err=%v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logs.Infof("bus.Bus reconnected url=%s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewFromConn(conn, cfg, intake), nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(conn *nats.Conn, cfg Config, intake Intake) *Bus {
	return &Bus{conn: conn, cfg: withDefaults(cfg), intake: intake, now: time.Now}
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	cfg.SubjectPrefix = strings.Trim(strings.TrimSpace(cfg.SubjectPrefix), ".")
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	return cfg
}

func (b *Bus) subject(parts ...string) string {
	return b.cfg.SubjectPrefix + "." + strings.Join(parts, ".")
}

func (b *Bus) FeedbackSubject() string { return b.subject("feedback") }
func (b *Bus) CommandSubject() string  { return b.subject("user") }

// Start subscribes to telemetry and command subjects.
func (b *Bus) Start() error {
	if b.closed.Load() {
		return ErrClosed
	}
	handlers := map[string]nats.MsgHandler{
		b.subject("telemetry", "*", "pose"):     b.onTelemetry,
		b.subject("telemetry", "*", "velocity"): b.onTelemetry,
		b.subject("telemetry", "*", "status"):   b.onTelemetry,
		b.CommandSubject():                      b.onCommand,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for subject, h := range handlers {
		sub, err := b.conn.Subscribe(subject, h)
		if err != nil {
			return fmt.Errorf("bus: subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
		logs.Infof("bus.Bus.Start subscribed subject=%s", subject)
	}
	return nil
}

func (b *Bus) onTelemetry(msg *nats.Msg) {
	if err := b.HandleTelemetry(msg.Subject, msg.Data); err != nil {
		logs.Warnf("bus.Bus.onTelemetry subject=%s err=%v", msg.Subject, err)
	}
}

func (b *Bus) onCommand(msg *nats.Msg) {
	reply, err := b.HandleCommand(msg.Data)
	if err != nil {
		logs.Warnf("bus.Bus.onCommand ignored err=%v", err)
		reply, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	if msg.Reply != "" {
		_ = msg.Respond(reply)
	}
}

// HandleTelemetry decodes one telemetry message and hands it to the intake.
// Unknown agent ids are the intake's concern; they are not an error here.
func (b *Bus) HandleTelemetry(subject string, data []byte) error {
	prefix := b.subject("telemetry") + "."
	if !strings.HasPrefix(subject, prefix) {
		return fmt.Errorf("%w: %s", ErrBadSubject, subject)
	}
	rest := strings.Split(strings.TrimPrefix(subject, prefix), ".")
	if len(rest) != 2 || rest[0] == "" {
		return fmt.Errorf("%w: %s", ErrBadSubject, subject)
	}
	id, feed := rest[0], rest[1]

	var queued bool
	switch feed {
	case "pose":
		var m PoseMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("bus: pose: %w", err)
		}
		queued = b.intake.IngestPose(id, m.pose(b.now))
	case "velocity":
		var m VelocityMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("bus: velocity: %w", err)
		}
		queued = b.intake.IngestVelocity(id, m.Linear.Vec())
	case "status":
		var m StatusMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("bus: status: %w", err)
		}
		queued = b.intake.IngestMissionCapable(id, m.MissionCapable)
	default:
		return fmt.Errorf("%w: unknown feed %q", ErrBadSubject, feed)
	}
	if !queued {
		logs.Debugf("bus.Bus.HandleTelemetry dropped id=%q feed=%s", id, feed)
	}
	return nil
}

func (m PoseMsg) pose(now func() time.Time) fleet.Pose {
	q := quat.Number{Real: m.Orientation.W, Imag: m.Orientation.X, Jmag: m.Orientation.Y, Kmag: m.Orientation.Z}
	if q == (quat.Number{}) {
		q = quat.Number{Real: 1}
	}
	stamp := now()
	if m.StampNS > 0 {
		stamp = time.Unix(0, m.StampNS)
	}
	return fleet.Pose{Position: m.Position.Vec(), Orientation: q, Stamp: stamp}
}

// HandleCommand decodes and dispatches one command, returning the JSON
// DispatchResult. Unknown verbs are rejected before anything is mutated.
func (b *Bus) HandleCommand(data []byte) ([]byte, error) {
	cmd, err := coordinator.DecodeCommand(data)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.CommandTimeout)
	defer cancel()
	res, err := b.intake.Submit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// PublishFeedback implements coordinator.FeedbackSink. NATS buffers the
// publish, so this never waits on the network.
func (b *Bus) PublishFeedback(fb coordinator.Feedback) {
	if b.closed.Load() {
		return
	}
	data, err := json.Marshal(fb)
	if err != nil {
		logs.Errf("bus.Bus.PublishFeedback marshal err=%v", err)
		return
	}
	if err := b.conn.Publish(b.FeedbackSubject(), data); err != nil {
		logs.Warnf("bus.Bus.PublishFeedback err=%v", err)
	}
}

func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}

var _ coordinator.FeedbackSink = (*Bus)(nil)
