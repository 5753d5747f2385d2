package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.RecomputeJob{
		{JobID: "c", Owner: "alice", Status: jobs.JobStatusCompleted},
		{JobID: "a", Owner: "bob", Status: jobs.JobStatusPending},
		{JobID: "b", Owner: "alice", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob returned error: %v", err)
		}
	}
	if err := s.SaveJob(ctx, &jobs.RecomputeJob{}); err == nil {
		t.Error("expected error for a job without ID")
	}

	got, err := s.GetJob(ctx, "a")
	if err != nil || got.Owner != "bob" {
		t.Fatalf("GetJob = %+v, %v", got, err)
	}
	got.Owner = "mallory"
	if again, _ := s.GetJob(ctx, "a"); again.Owner != "bob" {
		t.Error("GetJob should return a copy")
	}
	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all oldest first", filter: jobs.JobFilter{}, want: []string{"c", "a", "b"}},
		{name: "by owner", filter: jobs.JobFilter{Owner: "alice"}, want: []string{"c", "b"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusPending}, want: []string{"a", "b"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 1}, want: []string{"c"}},
		{name: "offset", filter: jobs.JobFilter{Offset: 2}, want: []string{"b"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 5}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs returned error: %v", err)
			}
			var ids []string
			for _, j := range list {
				ids = append(ids, j.JobID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ListJobs = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ListJobs = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}

	if err := s.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus returned error: %v", err)
	}
	if j, _ := s.GetJob(ctx, "a"); j.Status != jobs.JobStatusFailed || j.Error != "boom" {
		t.Errorf("unexpected job after update %+v", j)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

// waitForStatus polls the store until the job reaches status.
func waitForStatus(t *testing.T, s *Store, id string, status jobs.JobStatus) *jobs.RecomputeJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if j, err := s.GetJob(context.Background(), id); err == nil && j.Status == status {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := s.GetJob(context.Background(), id)
	t.Fatalf("job %s did not reach %s, last state %+v", id, status, j)
	return nil
}

func TestStore_Retention(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithRetention(2))
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.RecomputeJob{
		{JobID: "old", Status: jobs.JobStatusCompleted},
		{JobID: "busy", Status: jobs.JobStatusRunning},
		{JobID: "done", Status: jobs.JobStatusFailed},
		{JobID: "new", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob returned error: %v", err)
		}
	}

	for _, id := range []string{"old", "done"} {
		if _, err := s.GetJob(ctx, id); err == nil {
			t.Errorf("finished job %s should have been evicted", id)
		}
	}
	for _, id := range []string{"busy", "new"} {
		if _, err := s.GetJob(ctx, id); err != nil {
			t.Errorf("active job %s was evicted: %v", id, err)
		}
	}
}

func TestQueue_Completes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	if err := q.Start(ctx, func(ctx context.Context, job *jobs.RecomputeJob) error {
		job.Updated = 7
		job.ReportURI = "gs://reports/" + job.Owner + ".xlsx"
		return nil
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	job := &jobs.RecomputeJob{Owner: "alice"}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if job.JobID == "" || job.Kind != jobs.JobKindRecompute || job.MaxRetries != defaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Updated != 7 || done.ReportURI != "gs://reports/alice.xlsx" || done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("unexpected completed job %+v", done)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, store)
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var calls atomic.Int32
	q.Start(ctx, func(ctx context.Context, job *jobs.RecomputeJob) error {
		calls.Add(1)
		return errors.New("bigquery unavailable")
	})

	job := &jobs.RecomputeJob{Owner: "alice", MaxRetries: 2}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || failed.Error != "bigquery unavailable" {
		t.Errorf("unexpected failed job %+v", failed)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("handler called %d times, want 3", n)
	}
}

func TestQueue_RetrySucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, store)
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var calls atomic.Int32
	q.Start(ctx, func(ctx context.Context, job *jobs.RecomputeJob) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	job := &jobs.RecomputeJob{Owner: "alice"}
	q.Publish(ctx, job)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 1 || done.Error != "" {
		t.Errorf("unexpected job %+v", done)
	}
}

func TestQueue_SerializesSameOwner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(20, 4, store)
	defer q.Close()

	var (
		mu      sync.Mutex
		running = map[string]int{}
		overlap bool
		maxAll  int
		active  int
	)
	q.Start(ctx, func(ctx context.Context, job *jobs.RecomputeJob) error {
		mu.Lock()
		running[job.Owner]++
		active++
		if running[job.Owner] > 1 {
			overlap = true
		}
		if active > maxAll {
			maxAll = active
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running[job.Owner]--
		active--
		mu.Unlock()
		return nil
	})

	var published []*jobs.RecomputeJob
	for i := 0; i < 3; i++ {
		for _, owner := range []string{"alice", "bob"} {
			j := &jobs.RecomputeJob{Owner: owner}
			if err := q.Publish(ctx, j); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			published = append(published, j)
		}
	}
	for _, j := range published {
		waitForStatus(t, store, j.JobID, jobs.JobStatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Error("two jobs of the same owner ran concurrently")
	}
	if maxAll > 2 {
		t.Errorf("at most one job per owner should run, saw %d at once", maxAll)
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
	if err := q.Publish(context.Background(), &jobs.RecomputeJob{Owner: "alice"}); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Start(context.Background(), nil); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
	q2 := NewQueue(1, 1, nil)
	if err := q2.Publish(context.Background(), &jobs.RecomputeJob{}); err == nil {
		t.Error("expected error for a job without owner")
	}
}
