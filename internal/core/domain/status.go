package domain

import "time"

type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
	StatusStopped Status = "STOPPED"
)

// SchedulerState is a point-in-time copy of the keep-alive scheduler.
type SchedulerState struct {
	Status        Status `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// PingResult describes one keep-alive probe. Reached is true only for a 2xx answer;
// every result is still logged.
type PingResult struct {
	URL        string        `json:"url"`
	At         time.Time     `json:"at"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Reached    bool          `json:"reached"`
	Err        error         `json:"-"`
}
