package api

import (
	"encoding/json"

	"swinglab/internal/preflight"
	"swinglab/internal/queue"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) QueueJob {
	if job == nil {
		return QueueJob{}
	}

	dto := QueueJob{
		ID:           job.ID,
		SourceName:   job.SourceName,
		ArtifactPath: job.ArtifactPath,
		Status:       string(job.Status),
		Progress: JobProgress{
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if raw := job.ResultJSON; raw != "" {
		dto.Result = json.RawMessage(raw)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []QueueJob {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]QueueJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromHealthSummary converts store health aggregates to API payload.
func FromHealthSummary(health queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:     health.Total,
		Pending:   health.Pending,
		InFlight:  health.InFlight,
		Completed: health.Completed,
		Failed:    health.Failed,
	}
}

// FromCheckResults converts preflight results to API payload.
func FromCheckResults(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(results))
	for _, result := range results {
		out = append(out, CheckResult{
			Name:   result.Name,
			Passed: result.Passed,
			Detail: result.Detail,
		})
	}
	return out
}
