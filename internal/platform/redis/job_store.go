package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/store"
)

// JobStore implements store.JobStore on Redis, one hash per job.
type JobStore struct {
	client *goredis.Client
}

// NewJobStore creates a Redis-backed job store.
func NewJobStore(client *goredis.Client) *JobStore {
	return &JobStore{client: client}
}

// SaveJob persists a newly submitted job.
func (s *JobStore) SaveJob(ctx context.Context, j *job.Job) error {
	key := jobKey(j.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: save job exists check: %w", err)
	}
	if exists > 0 {
		return store.ErrJobExists
	}

	if err := s.client.HSet(ctx, key, jobToMap(j)).Err(); err != nil {
		return fmt.Errorf("redis: save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by identifier.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, jobKey(id.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, store.ErrJobNotFound
	}
	return mapToJob(vals)
}

// UpdateJob persists changes to an existing job's record.
func (s *JobStore) UpdateJob(ctx context.Context, j *job.Job) error {
	key := jobKey(j.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: update job exists check: %w", err)
	}
	if exists == 0 {
		return store.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: update job: %w", err)
	}
	return nil
}

// ListJobsByState scans job hashes and returns those in the given
// state. Intended for operational inspection, not hot paths.
func (s *JobStore) ListJobsByState(ctx context.Context, state job.State) ([]*job.Job, error) {
	var out []*job.Job
	iter := s.client.Scan(ctx, 0, jobKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		vals, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		j, err := mapToJob(vals)
		if err != nil {
			continue
		}
		if j.State == state {
			out = append(out, j)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: list jobs scan: %w", err)
	}
	return out, nil
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":          j.ID.String(),
		"operation":   j.Operation,
		"args":        string(j.Args),
		"queue":       j.Queue,
		"state":       string(j.State),
		"result":      string(j.Result),
		"error":       j.Error,
		"attempts":    strconv.Itoa(j.Attempts),
		"max_retries": strconv.Itoa(j.MaxRetries),
		"created_at":  j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToJob(m map[string]string) (*job.Job, error) {
	id, err := uuid.Parse(m["id"])
	if err != nil {
		return nil, fmt.Errorf("redis: parse job id: %w", err)
	}

	// Numeric and time fields are our own writes; parse failures
	// leave zero values rather than failing the read.
	attempts, _ := strconv.Atoi(m["attempts"])
	maxRetries, _ := strconv.Atoi(m["max_retries"])
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	j := &job.Job{
		ID:         id,
		Operation:  m["operation"],
		Queue:      m["queue"],
		State:      job.State(m["state"]),
		Error:      m["error"],
		Attempts:   attempts,
		MaxRetries: maxRetries,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if v := m["args"]; v != "" {
		j.Args = []byte(v)
	}
	if v := m["result"]; v != "" {
		j.Result = []byte(v)
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		j.CompletedAt = &t
	}
	return j, nil
}
