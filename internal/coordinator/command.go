package coordinator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownVerb    = errors.New("coordinator: unknown verb")
	ErrInvalidCommand = errors.New("coordinator: invalid command")
)

// AllAgents in an id list expands to every registered agent.
const AllAgents = "all"

// Verb is the closed set of command verbs. Strings are parsed once at the
// boundary and never compared again.
type Verb uint8

const (
	VerbGoToVelocity Verb = iota + 1
	VerbTakeoffAll
	VerbLandAll
	VerbGoTo
	VerbLand
)

var verbNames = map[Verb]string{
	VerbGoToVelocity: "goto_velocity",
	VerbTakeoffAll:   "takeoff_all",
	VerbLandAll:      "land_all",
	VerbGoTo:         "goto",
	VerbLand:         "land",
}

func ParseVerb(raw string) (Verb, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for v, name := range verbNames {
		if name == key {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVerb, raw)
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return fmt.Sprintf("verb(%d)", uint8(v))
}

func (v Verb) MarshalText() ([]byte, error) {
	name, ok := verbNames[v]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVerb, uint8(v))
	}
	return []byte(name), nil
}

func (v *Verb) UnmarshalText(b []byte) error {
	parsed, err := ParseVerb(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Command is one decoded operator command.
type Command struct {
	Verb             Verb
	AgentIDs         []string
	Goal             r3.Vec
	Yaw              float64
	ExternalOverride bool
}

// Point is the JSON form of a position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func PointOf(v r3.Vec) Point { return Point{X: v.X, Y: v.Y, Z: v.Z} }
func (p Point) Vec() r3.Vec  { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// AgentList accepts either a JSON list of ids or the bare string "all".
type AgentList []string

func (l *AgentList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = AgentList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("%w: agent_ids must be a string or list of strings", ErrInvalidCommand)
	}
	*l = many
	return nil
}

// CommandEnv is the wire form of a Command shared by HTTP and bus intake.
type CommandEnv struct {
	Verb             string    `json:"verb"`
	AgentIDs         AgentList `json:"agent_ids"`
	Goal             Point     `json:"goal"`
	Yaw              float64   `json:"yaw"`
	ExternalOverride bool      `json:"external_override"`
}

// Command validates the envelope and returns the typed command.
func (e CommandEnv) Command() (Command, error) {
	verb, err := ParseVerb(e.Verb)
	if err != nil {
		return Command{}, err
	}
	ids := make([]string, 0, len(e.AgentIDs))
	for _, id := range e.AgentIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	switch verb {
	case VerbTakeoffAll, VerbLandAll:
	default:
		if len(ids) == 0 {
			return Command{}, fmt.Errorf("%w: %s requires agent_ids", ErrInvalidCommand, verb)
		}
	}
	return Command{
		Verb:             verb,
		AgentIDs:         ids,
		Goal:             e.Goal.Vec(),
		Yaw:              e.Yaw,
		ExternalOverride: e.ExternalOverride,
	}, nil
}

// DecodeCommand parses a JSON CommandEnv.
func DecodeCommand(data []byte) (Command, error) {
	var env CommandEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return env.Command()
}
