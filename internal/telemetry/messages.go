package telemetry

import (
	"time"

	"github.com/nerrad567/otg-controller/internal/automation"
)

// CycleMessage is published for every completed cycle.
// Topic: {prefix}/automation/cycles
type CycleMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Platform  string    `json:"platform,omitempty"`
	automation.CycleResult
}

// StatusMessage is published (retained) on every engine state change.
// Topic: {prefix}/automation/status
type StatusMessage struct {
	Status     automation.Status `json:"status"`
	CycleCount int               `json:"cycle_count"`
	Timestamp  time.Time         `json:"timestamp"`
}

// CommandMessage is the optional body of a command. An empty payload is
// accepted.
// Topic: {prefix}/automation/command/{start|stop|emergency_stop}
type CommandMessage struct {
	// ID correlates the command with its result.
	ID string `json:"id,omitempty"`

	// Source names the sender (e.g. "dashboard", "home-assistant").
	Source string `json:"source,omitempty"`
}

// CommandResultMessage reports the outcome of a command.
// Topic: {prefix}/automation/result/{command}
type CommandResultMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
