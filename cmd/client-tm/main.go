package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/swarmctl/internal/api"
	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/logging"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
)

const clientConfigPath = "cmd/client-tm/swarm.toml"

var (
	// ErrNavigateBack signals caller-intent to return to the previous menu.
	ErrNavigateBack = errors.New("navigate back")
	// ErrNavigateExit signals caller-intent to exit the interactive client.
	ErrNavigateExit = errors.New("navigate exit")
)

// clientConfigFile persists swarmctl targets configured for the client.
type clientConfigFile struct {
	ClearScreenAfterCommand bool           `toml:"clear_screen_after_command"`
	Targets                 []targetConfig `toml:"targets"`
}

// targetConfig binds a display name to a swarmctl HTTP base URL.
type targetConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// SwarmTarget is one live target with its API client.
type SwarmTarget struct {
	Name   string
	Remote *RemoteSwarm
}

// App hosts interactive state and persisted target references.
type App struct {
	reader       *bufio.Reader
	out          io.Writer
	cfgPath      string
	cfg          clientConfigFile
	targets      []SwarmTarget
	activeTarget int
	clearScreen  bool
}

func main() {
	path := flag.String("config", clientConfigPath, "client target config path")
	flag.Parse()

	logging.ConfigureTool()
	app := NewApp(*path, os.Stdin, os.Stdout)
	if err := app.Run(); err != nil {
		logs.Errf("client-tm: %v", err)
		os.Exit(1)
	}
}

func NewApp(cfgPath string, in io.Reader, out io.Writer) *App {
	return &App{
		reader:       bufio.NewReader(in),
		out:          out,
		cfgPath:      cfgPath,
		activeTarget: -1,
	}
}

// Run executes the main interactive menu loop.
func (a *App) Run() error {
	if err := a.loadOrInitConfig(); err != nil {
		return err
	}
	logs.Infof("client-tm loaded targets=%d", len(a.cfg.Targets))

	for {
		a.printMainMenu()
		choice, err := a.promptInt("Choose", 1, 9, false, true)
		if err != nil {
			if errors.Is(err, ErrNavigateExit) || errors.Is(err, io.EOF) {
				return a.exitClient()
			}
			return err
		}
		a.clearIfEnabled()
		if choice == 9 {
			return a.exitClient()
		}
		if err := a.dispatchMenu(choice); err != nil {
			switch {
			case errors.Is(err, ErrNavigateBack):
				continue
			case errors.Is(err, ErrNavigateExit), errors.Is(err, io.EOF):
				return a.exitClient()
			}
			logs.Errf("client-tm menu=%d failed: %v", choice, err)
		}
	}
}

func (a *App) dispatchMenu(choice int) error {
	switch choice {
	case 1:
		a.listTargets()
		return nil
	case 2:
		return a.addTarget()
	case 3:
		return a.selectActiveTarget()
	}

	target, ok := a.active()
	if !ok {
		return errors.New("no active target")
	}
	switch choice {
	case 4:
		return a.showFleet(target)
	case 5:
		return a.sendCommand(target)
	case 6:
		return a.showFeedback(target)
	case 7:
		return a.showLinks(target)
	case 8:
		return a.setMissionCapable(target)
	}
	return nil
}

// exitClient saves current config before leaving.
func (a *App) exitClient() error {
	if err := a.saveConfig(); err != nil {
		logs.Warnf("save on exit failed: %v", err)
	}
	logs.Infof("client-tm exiting")
	return nil
}

// loadOrInitConfig loads the persisted file and seeds a local default target.
func (a *App) loadOrInitConfig() error {
	if err := ensureFile(a.cfgPath); err != nil {
		return err
	}
	if _, err := toml.DecodeFile(a.cfgPath, &a.cfg); err != nil {
		return fmt.Errorf("load client config: %w", err)
	}
	a.clearScreen = a.cfg.ClearScreenAfterCommand

	needsSave := false
	if len(a.cfg.Targets) == 0 {
		a.cfg.Targets = append(a.cfg.Targets, targetConfig{Name: "local", URL: "http://127.0.0.1:8080"})
		needsSave = true
	}
	for _, t := range a.cfg.Targets {
		name := strings.TrimSpace(t.Name)
		url := strings.TrimSpace(t.URL)
		if name == "" || url == "" {
			continue
		}
		a.targets = append(a.targets, SwarmTarget{Name: name, Remote: NewRemoteSwarm(url)})
	}
	if len(a.targets) > 0 {
		a.activeTarget = 0
	}
	if needsSave {
		return a.saveConfig()
	}
	return nil
}

func (a *App) saveConfig() error {
	buf := strings.Builder{}
	if err := toml.NewEncoder(&buf).Encode(a.cfg); err != nil {
		return err
	}
	return os.WriteFile(a.cfgPath, []byte(buf.String()), 0o644)
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}

func (a *App) printMainMenu() {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Swarm TM")
	fmt.Fprintf(a.out, "  config: %s (targets=%d)\n", a.cfgPath, len(a.cfg.Targets))
	if t, ok := a.active(); ok {
		fmt.Fprintf(a.out, "  active: %s %s\n", t.Name, t.Remote.BaseURL())
	}
	fmt.Fprintln(a.out, "  1) List targets")
	fmt.Fprintln(a.out, "  2) Add target (persist)")
	fmt.Fprintln(a.out, "  3) Select active target")
	fmt.Fprintln(a.out, "  4) Fleet status")
	fmt.Fprintln(a.out, "  5) Send command")
	fmt.Fprintln(a.out, "  6) Latest feedback")
	fmt.Fprintln(a.out, "  7) Motion links")
	fmt.Fprintln(a.out, "  8) Set mission capable")
	fmt.Fprintln(a.out, "  9) Exit")
}

func (a *App) clearIfEnabled() {
	if a.clearScreen {
		fmt.Fprint(a.out, "\033[H\033[2J")
	}
}

func (a *App) active() (SwarmTarget, bool) {
	if a.activeTarget < 0 || a.activeTarget >= len(a.targets) {
		return SwarmTarget{}, false
	}
	return a.targets[a.activeTarget], true
}

func (a *App) listTargets() {
	if len(a.targets) == 0 {
		fmt.Fprintln(a.out, "No targets configured.")
		return
	}
	for i, t := range a.targets {
		marker := " "
		if i == a.activeTarget {
			marker = "*"
		}
		fmt.Fprintf(a.out, " %s %d) %s %s\n", marker, i+1, t.Name, t.Remote.BaseURL())
	}
}

func (a *App) addTarget() error {
	name, err := a.promptLine("Name")
	if err != nil {
		return err
	}
	url, err := a.promptLine("Base URL (http://host:port)")
	if err != nil {
		return err
	}
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return errors.New("name and url are required")
	}
	a.cfg.Targets = append(a.cfg.Targets, targetConfig{Name: name, URL: url})
	a.targets = append(a.targets, SwarmTarget{Name: name, Remote: NewRemoteSwarm(url)})
	a.activeTarget = len(a.targets) - 1
	return a.saveConfig()
}

func (a *App) selectActiveTarget() error {
	if len(a.targets) == 0 {
		return errors.New("no targets configured")
	}
	a.listTargets()
	choice, err := a.promptInt("Target", 1, len(a.targets), true, true)
	if err != nil {
		return err
	}
	a.activeTarget = choice - 1
	return nil
}

func (a *App) showFleet(target SwarmTarget) error {
	agents, err := target.Remote.Agents()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%-8s %-18s %-26s %-5s %-5s %-5s %s\n", "ID", "STATE", "POSITION", "LINK", "DONE", "READY", "QUEUE")
	for _, v := range agents {
		fmt.Fprintf(a.out, "%-8s %-18s (%6.2f %6.2f %6.2f)     %-5v %-5v %-5v %d\n",
			v.ID, v.FlightState, v.Position.X, v.Position.Y, v.Position.Z,
			v.RadioConnection, v.Completed, v.MissionCapable, len(v.Targets))
	}
	return nil
}

var verbChoices = []string{"goto_velocity", "goto", "land", "takeoff_all", "land_all"}

func (a *App) sendCommand(target SwarmTarget) error {
	for i, v := range verbChoices {
		fmt.Fprintf(a.out, "  %d) %s\n", i+1, v)
	}
	choice, err := a.promptInt("Verb", 1, len(verbChoices), true, true)
	if err != nil {
		return err
	}
	env := coordinator.CommandEnv{Verb: verbChoices[choice-1]}

	if env.Verb != "takeoff_all" && env.Verb != "land_all" {
		raw, err := a.promptLine("Agent ids (comma separated or all)")
		if err != nil {
			return err
		}
		env.AgentIDs = parseAgentIDs(raw)
	}
	if env.Verb == "goto_velocity" || env.Verb == "goto" {
		raw, err := a.promptLine("Goal x,y,z")
		if err != nil {
			return err
		}
		if env.Goal, err = parseGoal(raw); err != nil {
			return err
		}
	}
	if env.Verb == "goto_velocity" {
		raw, err := a.promptLine("External override [y/N]")
		if err != nil {
			return err
		}
		env.ExternalOverride = parseYes(raw)
	}

	res, err := target.Remote.SendCommand(env)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "request=%s verb=%s outcome=%s acknowledged=%v unresolved=%v\n",
		res.RequestID, res.Verb, res.Outcome(), res.Acknowledged, res.Unresolved)
	return nil
}

func (a *App) showFeedback(target SwarmTarget) error {
	fb, err := target.Remote.Feedback()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "tick=%d stamp=%s\n", fb.Tick, fb.Stamp.Format(time.RFC3339Nano))
	for _, ag := range fb.Agents {
		fmt.Fprintf(a.out, "  %-8s %-18s connected=%v completed=%v mission_capable=%v\n",
			ag.ID, ag.FlightState, ag.Connected, ag.Completed, ag.MissionCapable)
	}
	for _, path := range fb.Targets {
		fmt.Fprintf(a.out, "  path %s:", path.AgentID)
		for _, p := range path.Points {
			fmt.Fprintf(a.out, " (%.2f %.2f %.2f)", p.X, p.Y, p.Z)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func (a *App) showLinks(target SwarmTarget) error {
	links, err := target.Remote.Links()
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Fprintln(a.out, "No motion endpoints configured (requests are logged only).")
		return nil
	}
	for _, l := range links {
		fmt.Fprintf(a.out, "  %-8s %-22s connected=%v sent=%d dropped=%d\n", l.AgentID, l.Addr, l.Connected, l.Sent, l.Dropped)
	}
	return nil
}

func (a *App) setMissionCapable(target SwarmTarget) error {
	id, err := a.promptLine("Agent id")
	if err != nil {
		return err
	}
	raw, err := a.promptLine("Mission capable [y/N]")
	if err != nil {
		return err
	}
	return target.Remote.SetMissionCapable(strings.TrimSpace(id), parseYes(raw))
}

func (a *App) promptLine(label string) (string, error) {
	if strings.TrimSpace(label) != "" {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) promptInt(label string, min int, max int, allowBack bool, allowExit bool) (int, error) {
	for {
		rangePrompt := fmt.Sprintf("%s [%d-%d", label, min, max)
		if allowBack {
			rangePrompt += "|back|b"
		}
		if allowExit {
			rangePrompt += "|exit|e"
		}
		rangePrompt += "]"
		line, err := a.promptLine(rangePrompt)
		if err != nil {
			return 0, err
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if allowBack && (trimmed == "back" || trimmed == "b") {
			return 0, ErrNavigateBack
		}
		if allowExit && (trimmed == "exit" || trimmed == "e") {
			return 0, ErrNavigateExit
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < min || v > max {
			fmt.Fprintln(a.out, "Invalid selection.")
			continue
		}
		return v, nil
	}
}

func parseAgentIDs(raw string) coordinator.AgentList {
	out := coordinator.AgentList{}
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func parseGoal(raw string) (coordinator.Point, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) != 3 {
		return coordinator.Point{}, fmt.Errorf("goal needs three components, got %q", raw)
	}
	var xyz [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return coordinator.Point{}, fmt.Errorf("goal component %d: %w", i, err)
		}
		xyz[i] = v
	}
	return coordinator.Point{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func parseYes(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}

// RemoteSwarm calls one swarmctl HTTP API.
type RemoteSwarm struct {
	base string
	http *http.Client
}

func NewRemoteSwarm(base string) *RemoteSwarm {
	return &RemoteSwarm{
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *RemoteSwarm) BaseURL() string { return c.base }

func (c *RemoteSwarm) Agents() ([]api.AgentView, error) {
	var out struct {
		Agents []api.AgentView `json:"agents"`
	}
	err := c.call(http.MethodGet, "/agents", nil, &out)
	return out.Agents, err
}

func (c *RemoteSwarm) Feedback() (coordinator.Feedback, error) {
	var out coordinator.Feedback
	err := c.call(http.MethodGet, "/feedback", nil, &out)
	return out, err
}

func (c *RemoteSwarm) Links() ([]motion.LinkStatus, error) {
	var out struct {
		Links []motion.LinkStatus `json:"links"`
	}
	err := c.call(http.MethodGet, "/motion/links", nil, &out)
	return out.Links, err
}

func (c *RemoteSwarm) SendCommand(env coordinator.CommandEnv) (coordinator.DispatchResult, error) {
	var out coordinator.DispatchResult
	err := c.call(http.MethodPost, "/commands", env, &out)
	return out, err
}

func (c *RemoteSwarm) SetMissionCapable(id string, capable bool) error {
	body := map[string]bool{"mission_capable": capable}
	return c.call(http.MethodPut, "/agents/"+id+"/mission_capable", body, nil)
}

func (c *RemoteSwarm) call(method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
