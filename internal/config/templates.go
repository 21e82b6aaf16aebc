package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TemplateFile renders Default() back into file form with a sample fleet.
func TemplateFile() File {
	d := Default()
	return File{
		Agents:          []string{"cf1", "cf2", "cf3"},
		HistoryCapacity: d.HistoryCapacity,

		TickPeriod:  d.Coordinator.TickPeriod.String(),
		WorkerCount: d.Coordinator.Workers,
		QueueSize:   d.Coordinator.QueueSize,

		MaxVelocity:         d.Coordinator.MaxVelocity,
		ReachedThreshold:    d.Coordinator.ReachedThreshold,
		TakeoffHeight:       d.Coordinator.TakeoffHeight,
		TakeoffLandVelocity: d.Coordinator.TakeoffLandVelocity,
		ConnectionTimeout:   d.Coordinator.ConnectionTimeout.String(),

		CommunicationRadius: d.Planner.CommunicationRadius,
		ProtectedZone:       d.Planner.ProtectedZone,
		RVOTimeHorizon:      d.Planner.TimeHorizon,
		RVOTimeStep:         d.Planner.TimeStep,

		HTTPAddr:       d.API.Addr,
		CORSOrigins:    []string{"http://localhost:3000"},
		CommandRate:    d.API.CommandRate,
		CommandBurst:   d.API.CommandBurst,
		CommandTimeout: d.API.CommandTimeout.String(),

		NATSSubjectPrefix: d.NATS.SubjectPrefix,

		MotionQueueSize:        d.Motion.QueueSize,
		MotionDialTimeout:      d.Motion.DialTimeout.String(),
		MotionWriteTimeout:     d.Motion.WriteTimeout.String(),
		MotionRedialInitial:    d.Motion.Backoff.InitialDelay.String(),
		MotionRedialMultiplier: d.Motion.Backoff.Multiplier,
		MotionRedialMax:        d.Motion.Backoff.MaxDelay.String(),
		MotionRedialJitter:     d.Motion.Backoff.Jitter,
	}
}

func Template() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(TemplateFile()); err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return buf.String(), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
