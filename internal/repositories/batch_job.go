package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
)

// BatchJobRepository implements models.Repository[*models.BatchJob] for the history of watched jobs.
//
// It also satisfies tasks.JobRecorder so pollers can record runs as they happen.
type BatchJobRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.BatchJob] = (*BatchJobRepository)(nil)

// NewBatchJobRepository creates a new BatchJobRepository with the given database connection
func NewBatchJobRepository(db *sql.DB) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

const batchJobColumns = `id, sequence, kind, status, expected_total, total, current, success, failed, message,
	started_at, finished_at, created_at, updated_at`

// Begin records a new running job of kind.
func (r *BatchJobRepository) Begin(kind models.BatchKind, expectedTotal int) (*models.BatchJob, error) {
	job := models.NewBatchJob(0, kind, expectedTotal)
	if err := r.Create(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Create inserts a new batch job with generated ID and sequence
func (r *BatchJobRepository) Create(job *models.BatchJob) error {
	sequence, err := NextSequence(r.db, "batch_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	job.SetSequence(sequence)
	job.SetID(shared.GenerateID())

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO batch_jobs (` + batchJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		job.ID(),
		sequence,
		job.Kind(),
		job.Status(),
		job.ExpectedTotal(),
		job.Total(),
		job.Current(),
		job.Success(),
		job.Failed(),
		job.Message(),
		job.StartedAt(),
		nullTime(job.FinishedAt()),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch job: %w", err)
	}
	return nil
}

// Get retrieves a batch job by ID
func (r *BatchJobRepository) Get(id string) (*models.BatchJob, error) {
	query := `SELECT ` + batchJobColumns + ` FROM batch_jobs WHERE id = ?`
	job, err := scanBatchJob(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, err
}

// Update writes the job's counts, status and message
func (r *BatchJobRepository) Update(job *models.BatchJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE batch_jobs
		SET status = ?, expected_total = ?, total = ?, current = ?, success = ?, failed = ?,
			message = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		job.Status(),
		job.ExpectedTotal(),
		job.Total(),
		job.Current(),
		job.Success(),
		job.Failed(),
		job.Message(),
		nullTime(job.FinishedAt()),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update batch job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID())
	}
	return nil
}

// Delete removes a batch job record
func (r *BatchJobRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM batch_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return nil
}

// List retrieves batch jobs, newest first.
//
// Supported criteria: "kind" (string or models.BatchKind), "status" (string or models.JobStatus) and "limit" (int).
func (r *BatchJobRepository) List(criteria map[string]any) ([]*models.BatchJob, error) {
	query := `SELECT ` + batchJobColumns + ` FROM batch_jobs WHERE 1 = 1`
	args := []any{}

	if kind := criterionString(criteria["kind"]); kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status := criterionString(criteria["status"]); status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.BatchJob
	for rows.Next() {
		job, err := scanBatchJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return jobs, nil
}

// MarkAbandoned fails every job still marked running, e.g. after the client exited mid-poll.
func (r *BatchJobRepository) MarkAbandoned() (int, error) {
	now := time.Now()
	result, err := r.db.Exec(
		`UPDATE batch_jobs SET status = ?, message = ?, finished_at = ?, updated_at = ? WHERE status = ?`,
		models.JobFailed, "client exited before the job finished", now, now, models.JobRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update batch jobs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

func criterionString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case models.BatchKind:
		return string(s)
	case models.JobStatus:
		return string(s)
	default:
		return ""
	}
}

func scanBatchJob(s scanner) (*models.BatchJob, error) {
	var (
		id            string
		sequence      int
		kind          string
		status        string
		expectedTotal int
		total         int
		current       int
		success       int
		failed        int
		message       string
		startedAt     time.Time
		finishedAt    sql.NullTime
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := s.Scan(
		&id, &sequence, &kind, &status, &expectedTotal, &total, &current, &success, &failed, &message,
		&startedAt, &finishedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch job: %w", err)
	}

	job := models.NewBatchJob(sequence, models.BatchKind(kind), expectedTotal)
	job.SetID(id)
	job.SetStatus(models.JobStatus(status))
	job.SetCounts(total, current, success, failed)
	job.SetMessage(message)
	job.SetStartedAt(startedAt)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		job.SetFinishedAt(&finishedAt.Time)
	}
	return job, nil
}
