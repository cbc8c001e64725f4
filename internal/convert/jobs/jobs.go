// Package jobs implements the async job lifecycle: creation, completion/
// failure, and webhook delivery. The job record lives in the same primary
// Redis client the cache layer uses, with a 1h TTL refreshed on every
// status transition.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/errkind"
	"github.com/readmd/gateway/internal/pkg/utils"
)

const jobTTL = time.Hour

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func jobKey(id string) string { return "job:" + id }

// Create allocates a short opaque id and persists a processing job
// record with a 1h TTL.
func (s *Store) Create(ctx context.Context, rawURL string, opts convert.Options, callbackURL string) (*convert.Job, error) {
	job := &convert.Job{
		ID:          "job_" + utils.RandDigits(12),
		URL:         rawURL,
		Options:     opts,
		CallbackURL: callbackURL,
		Status:      convert.JobProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns the job record for id, or a JobNotFound error.
func (s *Store) Get(ctx context.Context, id string) (*convert.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		return nil, errkind.Wrap(errkind.JobNotFound, "job not found: "+id, err)
	}
	var job convert.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errkind.Wrap(errkind.Internal, "corrupt job record", err)
	}
	return &job, nil
}

// Complete transitions a job to completed, stores its result, and
// refreshes the TTL.
func (s *Store) Complete(ctx context.Context, id string, result *convert.Result) (*convert.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job.Status = convert.JobCompleted
	job.Result = result
	job.CompletedAt = &now
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Fail transitions a job to failed, stores the error message, and
// refreshes the TTL.
func (s *Store) Fail(ctx context.Context, id string, jobErr error) (*convert.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job.Status = convert.JobFailed
	job.Error = jobErr.Error()
	job.CompletedAt = &now
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) save(ctx context.Context, job *convert.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, jobTTL).Err(); err != nil {
		return errkind.Wrap(errkind.CacheUnavailable, "job store unavailable", err)
	}
	return nil
}
