package domain

import "time"

type LogKind string

const (
	LogKindInfo    LogKind = "info"
	LogKindSuccess LogKind = "success"
	LogKindWarning LogKind = "warning"
	LogKindError   LogKind = "error"
)

// Valid reports whether k is one of the four known kinds.
func (k LogKind) Valid() bool {
	switch k {
	case LogKindInfo, LogKindSuccess, LogKindWarning, LogKindError:
		return true
	}
	return false
}

// SystemLogEntry is one immutable line of the activity log.
type SystemLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Kind      LogKind   `json:"type"`
}
