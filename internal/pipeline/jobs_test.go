package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/jobs"
)

func snapshotStorage() *MockStorageService {
	return &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return []byte(`[
				{"date":"2025-04-01","label":"CB LIDL","amount":"-20","account":"Checking"},
				{"date":"2025-04-02","label":"VIREMENT VERS LIVRET A","amount":"-50","account":"Checking"}
			]`), nil
		},
	}
}

func TestJobHandler_Import(t *testing.T) {
	repo := &memRepo{}
	handler := NewJobHandler(Deps{Repo: repo, Storage: snapshotStorage(), Config: testConfig(t)})

	job := &jobs.RecomputeJob{JobID: "j1", Owner: "alice", Kind: jobs.JobKindImport, SourceURI: "gs://inbox/alice.json"}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if job.Imported != 2 || job.Updated != 2 || job.ReportURI == "" {
		t.Errorf("unexpected job results %+v", job)
	}
	if len(repo.txs) != 2 {
		t.Errorf("stored %d rows", len(repo.txs))
	}

	// A plain recompute ignores SourceURI.
	job = &jobs.RecomputeJob{JobID: "j2", Owner: "alice", Kind: jobs.JobKindRecompute, SourceURI: "gs://inbox/alice.json"}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if job.Imported != 0 || len(repo.txs) != 2 {
		t.Errorf("recompute must not import, imported %d, stored %d", job.Imported, len(repo.txs))
	}
}

func TestJobHandler_FailureAfterImport(t *testing.T) {
	repo := &memRepo{listErr: errors.New("read timeout")}
	handler := NewJobHandler(Deps{Repo: repo, Storage: snapshotStorage(), Config: config.Default()})

	job := &jobs.RecomputeJob{JobID: "j1", Owner: "alice", Kind: jobs.JobKindImport, SourceURI: "gs://inbox/alice.json", Replace: true}
	err := handler(context.Background(), job)
	if !errors.Is(err, repo.listErr) {
		t.Fatalf("expected the list error, got %v", err)
	}
	if job.Imported != 2 {
		t.Errorf("imported = %d", job.Imported)
	}
	if job.Kind != jobs.JobKindRecompute || job.SourceURI != "" || job.Replace {
		t.Errorf("a retry would import again: %+v", job)
	}
}
