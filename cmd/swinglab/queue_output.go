package main

import (
	"fmt"
	"strconv"
	"strings"

	"swinglab/internal/api"
	"swinglab/internal/queue"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildQueueStatusRows orders stats rows by lifecycle position.
func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[string(status)]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(jobs []api.QueueJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.SourceName,
			job.Status,
			formatJobProgress(job),
			job.CreatedAt,
		})
	}
	return rows
}

func formatJobProgress(job api.QueueJob) string {
	switch job.Status {
	case string(queue.StatusUploading), string(queue.StatusAnalyzing):
		text := fmt.Sprintf("%.0f%%", job.Progress.Percent)
		if job.Progress.Message != "" {
			text += " " + job.Progress.Message
		}
		return text
	case string(queue.StatusFailed):
		return truncate(job.ErrorMessage, 48)
	default:
		return ""
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
