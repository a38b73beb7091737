package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/platform/logger"
	"github.com/tverdon/offload-api/internal/store"
)

// JobStore implements store.JobStore using PostgreSQL.
type JobStore struct {
	db store.DBTX
}

// NewJobStore creates a PostgreSQL-backed job store.
func NewJobStore(db store.DBTX) *JobStore {
	return &JobStore{db: db}
}

// WithTx returns a JobStore bound to the provided transaction.
func (s *JobStore) WithTx(tx *sql.Tx) *JobStore {
	return &JobStore{db: tx}
}

// SaveJob persists a newly submitted job.
func (s *JobStore) SaveJob(ctx context.Context, j *job.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, operation, args, queue, state, result, error_message,
			attempts, max_retries, created_at, updated_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		j.Operation,
		argsOrEmpty(j.Args),
		j.Queue,
		j.State,
		nullBytes(j.Result),
		j.Error,
		j.Attempts,
		j.MaxRetries,
		j.CreatedAt,
		j.UpdatedAt,
		j.StartedAt,
		j.CompletedAt,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", j.ID,
			"operation", j.Operation,
			"error", err)
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by identifier.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `
		SELECT id, operation, args, queue, state, result, error_message,
			attempts, max_retries, created_at, updated_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job's record.
func (s *JobStore) UpdateJob(ctx context.Context, j *job.Job) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET state = $1, result = $2, error_message = $3, attempts = $4,
			updated_at = $5, started_at = $6, completed_at = $7
		WHERE id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		j.State,
		nullBytes(j.Result),
		j.Error,
		j.Attempts,
		time.Now().UTC(),
		j.StartedAt,
		j.CompletedAt,
		j.ID,
	)
	if err != nil {
		log.Error("failed to update job",
			"job_id", j.ID,
			"state", j.State,
			"error", err)
		return fmt.Errorf("failed to update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}
	return nil
}

// ListJobsByState returns all jobs currently in the given state.
func (s *JobStore) ListJobsByState(ctx context.Context, state job.State) ([]*job.Job, error) {
	query := `
		SELECT id, operation, args, queue, state, result, error_message,
			attempts, max_retries, created_at, updated_at, started_at, completed_at
		FROM jobs
		WHERE state = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j            job.Job
		args         []byte
		result       []byte
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	if err := row.Scan(
		&j.ID,
		&j.Operation,
		&args,
		&j.Queue,
		&j.State,
		&result,
		&errorMessage,
		&j.Attempts,
		&j.MaxRetries,
		&j.CreatedAt,
		&j.UpdatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	j.Args = args
	j.Result = result
	j.Error = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

// nullBytes maps empty payloads to NULL so jsonb columns stay clean.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// argsOrEmpty keeps the NOT NULL args column satisfied for jobs
// submitted without arguments.
func argsOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte(`[]`)
	}
	return b
}
