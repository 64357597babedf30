package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueJob describes a queue entry in a transport-friendly format.
type QueueJob struct {
	ID           int64           `json:"id"`
	SourceName   string          `json:"sourceName"`
	ArtifactPath string          `json:"artifactPath"`
	Status       string          `json:"status"`
	Progress     JobProgress     `json:"progress"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// JobProgress captures progress information for a queue entry.
type JobProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// CheckResult mirrors a preflight check outcome for status consumers.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// QueueHealth provides normalized queue diagnostics.
type QueueHealth struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InFlight  int `json:"inFlight"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	Connected   bool           `json:"connected"`
	Draining    bool           `json:"draining"`
	ActiveJobID int64          `json:"activeJobId,omitempty"`
	QueueStats  map[string]int `json:"queueStats"`
	QueueDBPath string         `json:"queueDbPath"`
	LockPath    string         `json:"lockPath"`
	Checks      []CheckResult  `json:"checks,omitempty"`
}
