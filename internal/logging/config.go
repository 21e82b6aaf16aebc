// Package logging picks the process log profile once at startup and applies
// SWARMCTL_LOG_* environment overrides on top of it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/swarmctl/internal/logs"
)

const (
	EnvLogLevel     = "SWARMCTL_LOG_LEVEL"
	EnvLogTimestamp = "SWARMCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "SWARMCTL_LOG_NOCOLOR"
	EnvLogBypass    = "SWARMCTL_LOG_BYPASS"
	// EnvLogFile redirects output to a file opened for append.
	EnvLogFile = "SWARMCTL_LOG_FILE"
)

type Profile int

const (
	// ProfileRuntime is the coordinator process: info, timestamps, stdout.
	ProfileRuntime Profile = iota
	// ProfileTest is go test: debug, no timestamps.
	ProfileTest
	// ProfileTool is the interactive CLIs, whose stdout belongs to the
	// operator: warnings and errors only, on stderr.
	ProfileTool
)

func (p Profile) String() string {
	switch p {
	case ProfileTest:
		return "test"
	case ProfileTool:
		return "tool"
	default:
		return "runtime"
	}
}

var configureOnce sync.Once

func ConfigureRuntime() { Configure(ProfileRuntime) }
func ConfigureTests()   { Configure(ProfileTest) }
func ConfigureTool()    { Configure(ProfileTool) }

// Configure applies profile plus env overrides. Only the first call in a
// process has any effect.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		warn := applyEnvOverrides(&cfg, os.Getenv, openLogFile)
		logs.Configure(cfg)
		if warn != "" {
			logs.Warnf("logging.Configure profile=%s %s", profile, warn)
		}
		logs.Debugf("logging.Configure profile=%s level=%s", profile, cfg.Level)
	})
}

func defaultConfig(profile Profile) logs.Config {
	cfg := logs.DefaultConfig()
	switch profile {
	case ProfileTest:
		cfg.Level = logs.DebugLevel
		cfg.Timestamp = false
	case ProfileTool:
		cfg.Level = logs.WarnLevel
		cfg.Timestamp = false
		cfg.Out = os.Stderr
	default:
		cfg.Level = logs.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

// applyEnvOverrides mutates cfg from getenv. Unparseable values are ignored;
// a log file that cannot be opened is reported through the returned warning.
func applyEnvOverrides(cfg *logs.Config, getenv func(string) string, open func(string) (io.Writer, error)) string {
	if lvl, ok := parseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
	if path := strings.TrimSpace(getenv(EnvLogFile)); path != "" {
		w, err := open(path)
		if err != nil {
			return fmt.Sprintf("log file %q unavailable, keeping default output: %v", path, err)
		}
		cfg.Out = w
		cfg.NoColor = true
	}
	return ""
}

func openLogFile(path string) (io.Writer, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func parseLevel(raw string) (logs.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return logs.InfoLevel, false
	case "trace", "diagnostics":
		return logs.TraceLevel, true
	case "debug":
		return logs.DebugLevel, true
	case "info":
		return logs.InfoLevel, true
	case "warn", "warning":
		return logs.WarnLevel, true
	case "error":
		return logs.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return logs.Disabled, true
	default:
		return logs.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
