package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/google/uuid"
)

const (
	defaultWorkers    = 5
	defaultMaxRetries = 3
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Jobs of different owners run in parallel on the worker goroutines; jobs
// of the same owner are serialized.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.RecomputeJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	workers   int

	ownersMu sync.Mutex
	owners   map[string]*sync.Mutex

	// Backoff returns the delay before the given retry. Defaults to
	// retry seconds.
	Backoff func(retry int) time.Duration
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Publish blocks;
// workers is the number of concurrent workers, 5 when not positive.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{
		jobChan:   make(chan *jobs.RecomputeJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		owners:    make(map[string]*sync.Mutex),
		Backoff: func(retry int) time.Duration {
			return time.Duration(retry) * time.Second
		},
	}
}

// Publish implements the Publisher interface.
// It enqueues a recompute job for asynchronous processing.
func (q *Queue) Publish(ctx context.Context, job *jobs.RecomputeJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return fmt.Errorf("Publish: %w", jobs.ErrQueueClosed)
	}
	if job.Owner == "" {
		return fmt.Errorf("Publish: job has no owner")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Kind == "" {
		job.Kind = jobs.JobKindRecompute
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("Publish: failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("Publish: %w", jobs.ErrQueueClosed)
	}
}

// Start implements the Consumer interface.
// It starts the workers, each calling handler for the jobs it receives.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("Start: %w", jobs.ErrQueueClosed)
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// ownerLock returns the mutex serializing the jobs of owner.
func (q *Queue) ownerLock(owner string) *sync.Mutex {
	q.ownersMu.Lock()
	defer q.ownersMu.Unlock()

	m, ok := q.owners[owner]
	if !ok {
		m = &sync.Mutex{}
		q.owners[owner] = m
	}
	return m
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.RecomputeJob, handler jobs.JobHandler) {
	lock := q.ownerLock(job.Owner)
	lock.Lock()
	defer lock.Unlock()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var retry *jobs.RecomputeJob
	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			next := *job
			retry = &next
		} else {
			job.Status = jobs.JobStatusFailed
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	if retry != nil {
		time.AfterFunc(q.Backoff(retry.RetryCount), func() {
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil
			if err := q.Publish(ctx, retry); err != nil && q.store != nil {
				retry.Status = jobs.JobStatusFailed
				retry.Error = fmt.Sprintf("%s (retry not scheduled: %v)", retry.Error, err)
				_ = q.store.SaveJob(context.Background(), retry)
			}
		})
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
