package ipc

import "swinglab/internal/api"

// QueueJob mirrors the API queue DTO for IPC callers.
type QueueJob = api.QueueJob

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports combined daemon and queue status.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	Connected   bool           `json:"connected"`
	Draining    bool           `json:"draining"`
	ActiveJobID int64          `json:"active_job_id"`
	QueueStats  map[string]int `json:"queue_stats"`
	QueueDBPath string         `json:"queue_db_path"`
	LockPath    string         `json:"lock_path"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// EnqueueRequest submits a recording for upload and analysis.
type EnqueueRequest struct {
	Path string `json:"path"`
}

// EnqueueResponse returns the created queue entry.
type EnqueueResponse struct {
	Job QueueJob `json:"job"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries, newest first.
type QueueListResponse struct {
	Jobs []QueueJob `json:"jobs"`
}

// QueueDescribeRequest fetches a single queue entry by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Job QueueJob `json:"job"`
}

// QueueClearRequest removes all jobs.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed jobs.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed jobs.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRetryRequest requeues failed jobs. Empty list means all failed jobs.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of requeued jobs.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRemoveRequest removes a single job and its spooled artifact.
type QueueRemoveRequest struct {
	ID int64 `json:"id"`
}

// QueueRemoveResponse reports whether the job record was removed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueHealthRequest fetches aggregate queue diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health counters.
type QueueHealthResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InFlight  int `json:"in_flight"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// CancelRequest cancels the active drain and any in-flight upload.
type CancelRequest struct{}

// CancelResponse acknowledges the cancellation.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ProcessRequest asks the daemon to drain pending jobs now.
type ProcessRequest struct{}

// ProcessResponse reports whether a drain pass was started or coalesced.
type ProcessResponse struct {
	Started bool `json:"started"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
