package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusAnalyzing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// inFlightStatuses are the states a job occupies while the remote call runs.
// At most one job system-wide may hold one of these at any instant.
var inFlightStatuses = map[Status]struct{}{
	StatusUploading: {},
	StatusAnalyzing: {},
}

// legalTransitions enumerates every allowed status edge. Rollback edges
// (uploading/analyzing back to pending) exist only for connectivity loss and
// cancellation; normal failures go to failed instead.
var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusUploading, StatusFailed},
	StatusUploading: {StatusAnalyzing, StatusCompleted, StatusFailed, StatusPending},
	StatusAnalyzing: {StatusCompleted, StatusFailed, StatusPending},
	StatusCompleted: {},
	StatusFailed:    {StatusPending},
}

// Job represents a queued swing recording persisted in SQLite.
type Job struct {
	ID              int64
	ArtifactPath    string
	SourceName      string
	Status          Status
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	ResultJSON      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	InFlight  int
	Completed int
	Failed    int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsInFlight reports whether the job currently occupies the single in-flight slot.
func (j Job) IsInFlight() bool {
	return IsInFlightStatus(j.Status)
}

// IsInFlightStatus reports whether a status reflects an in-flight remote operation.
func IsInFlightStatus(status Status) bool {
	_, ok := inFlightStatuses[status]
	return ok
}

// IsTerminal reports whether a status is an end state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
}

// SetProgress updates both progress fields together.
func (j *Job) SetProgress(message string, percent float64) {
	j.ProgressMessage = message
	j.ProgressPercent = percent
}
