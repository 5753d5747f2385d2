package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/jobs"
)

// Store is an in-memory implementation of JobStore, safe for concurrent use.
// Data is lost on service restart. With a retention limit, the oldest
// finished jobs are evicted once the store holds more jobs than the limit;
// pending and running jobs are never evicted.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobs.RecomputeJob
	retention int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetention keeps at most n jobs, n <= 0 meaning no limit.
func WithRetention(n int) StoreOption {
	return func(s *Store) { s.retention = n }
}

// NewStore creates a new in-memory job store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{jobs: make(map[string]*jobs.RecomputeJob)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob implements the JobStore interface. The job is copied, so later
// changes by the caller are not visible until the next SaveJob.
func (s *Store) SaveJob(ctx context.Context, job *jobs.RecomputeJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	s.evict()
	return nil
}

// evict drops the oldest finished jobs above the retention limit.
func (s *Store) evict() {
	if s.retention <= 0 || len(s.jobs) <= s.retention {
		return
	}
	var finished []*jobs.RecomputeJob
	for _, job := range s.jobs {
		if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
			finished = append(finished, job)
		}
	}
	sortOldestFirst(finished)
	for _, job := range finished {
		if len(s.jobs) <= s.retention {
			return
		}
		delete(s.jobs, job.JobID)
	}
}

func sortOldestFirst(js []*jobs.RecomputeJob) {
	sort.Slice(js, func(i, j int) bool {
		if !js[i].CreatedAt.Equal(js[j].CreatedAt) {
			return js[i].CreatedAt.Before(js[j].CreatedAt)
		}
		return js[i].JobID < js[j].JobID
	})
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RecomputeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface. Jobs are returned oldest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RecomputeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.RecomputeJob{}
	for _, job := range s.jobs {
		if filter.Owner != "" && job.Owner != filter.Owner {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sortOldestFirst(result)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.RecomputeJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
