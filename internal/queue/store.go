package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"swinglab/internal/config"
)

// ErrUnknownJob indicates the requested job id does not exist.
var ErrUnknownJob = errors.New("unknown job")

// ErrIllegalTransition indicates a status change that violates the job state machine.
var ErrIllegalTransition = errors.New("illegal status transition")

// Store manages job persistence backed by SQLite. Every mutating call commits
// before returning, so no partially-applied state survives a crash.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the queue database location.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a pending job for a spooled artifact. The record is fully
// persisted before the call returns.
func (s *Store) NewJob(ctx context.Context, artifactPath, sourceName string) (*Job, error) {
	artifactPath = strings.TrimSpace(artifactPath)
	if artifactPath == "" {
		return nil, errors.New("artifact path required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            artifact_path, source_name, status, progress_percent, progress_message,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		artifactPath,
		nullableString(sourceName),
		StatusPending,
		0.0,
		nil,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing id yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job without transition checks. Status
// changes driven by the processor should go through UpdateStatus instead.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET artifact_path = ?, source_name = ?, status = ?, progress_percent = ?,
             progress_message = ?, error_message = ?, result_json = ?, updated_at = ?
         WHERE id = ?`,
		job.ArtifactPath,
		nullableString(job.SourceName),
		job.Status,
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.ResultJSON),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", job.ID, ErrUnknownJob)
	}
	return nil
}

// UpdateStatus transitions a job and persists the new state. The transition is
// checked against the state machine; errMessage is stored for failed states
// and cleared otherwise.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, errMessage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	row := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %d: %w", id, ErrUnknownJob)
		}
		return fmt.Errorf("read status: %w", err)
	}

	if !CanTransition(Status(current), status) {
		return fmt.Errorf("job %d: %s -> %s: %w", id, current, status, ErrIllegalTransition)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(errMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// UpdateProgress records progress for an in-flight job without touching its
// status.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		percent,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkCompleted stores the analysis result and moves the job to completed.
func (s *Store) MarkCompleted(ctx context.Context, id int64, resultJSON string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, result_json = ?, error_message = NULL,
             progress_percent = 100, progress_message = 'Analysis complete', updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCompleted,
		nullableString(resultJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusUploading,
		StatusAnalyzing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d not in-flight: %w", id, ErrIllegalTransition)
	}
	return nil
}

// Rollback returns an in-flight job to pending without recording an error.
// Used for connectivity loss and cancellation; a no-op for any other state.
func (s *Store) Rollback(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = NULL, progress_percent = 0,
             progress_message = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusUploading,
		StatusAnalyzing,
	)
	if err != nil {
		return false, fmt.Errorf("rollback job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetInFlight returns any job persisted as uploading or analyzing to
// pending. Called once at daemon startup; no in-flight remote operation can
// have survived a process restart.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_percent = 0, progress_message = NULL,
             error_message = NULL, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusUploading,
		StatusAnalyzing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending for reprocessing. With no ids,
// every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
            SET status = ?, error_message = NULL, progress_percent = 0,
                progress_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	query := `UPDATE jobs
        SET status = ?, error_message = NULL, progress_percent = 0,
            progress_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// List returns jobs filtered by status set in processing order (oldest first).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	return s.list(ctx, ` ORDER BY created_at, id`, statuses...)
}

// ListForDisplay returns jobs newest first for history presentation.
func (s *Store) ListForDisplay(ctx context.Context, statuses ...Status) ([]*Job, error) {
	return s.list(ctx, ` ORDER BY created_at DESC, id DESC`, statuses...)
}

func (s *Store) list(ctx context.Context, orderClause string, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// PendingIDs returns the ids of pending jobs in FIFO order. Each drain pass
// captures this snapshot once at start; jobs enqueued mid-drain join the next
// pass.
func (s *Store) PendingIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("pending ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveResult reports the outcome of a Remove call. ArtifactErr is non-fatal
// and left to the caller to log.
type RemoveResult struct {
	Removed     bool
	ArtifactErr error
}

// Remove deletes a job record and its spooled artifact. A record-deletion
// failure is surfaced; an artifact-deletion failure is reported in the result
// for logging only.
func (s *Store) Remove(ctx context.Context, id int64) (RemoveResult, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return RemoveResult{}, err
	}
	if job == nil {
		return RemoveResult{}, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return RemoveResult{}, fmt.Errorf("rows affected: %w", err)
	}

	result := RemoveResult{Removed: affected > 0}
	if result.Removed && job.ArtifactPath != "" {
		if err := os.Remove(job.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			result.ArtifactErr = fmt.Errorf("remove artifact %s: %w", job.ArtifactPath, err)
		}
	}
	return result, nil
}

// Clear removes all jobs from the queue. Artifacts are left in place.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		default:
			if IsInFlightStatus(status) {
				health.InFlight += count
			}
		}
	}
	return health, nil
}

const jobColumns = "id, artifact_path, source_name, status, progress_percent, progress_message, error_message, result_json, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		artifactPath    string
		sourceName      sql.NullString
		statusStr       string
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		resultJSON      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&artifactPath,
		&sourceName,
		&statusStr,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&resultJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		ArtifactPath:    artifactPath,
		SourceName:      sourceName.String,
		Status:          Status(statusStr),
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
		ResultJSON:      resultJSON.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
