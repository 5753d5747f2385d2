package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dvloznov/finance-ledger/migrations"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/googleapi"
)

func TestChecksums(t *testing.T) {
	applied := []AppliedMigration{
		{Version: 1, Name: "schema_migrations", Checksum: "aaa"},
		{Version: 2, Name: "ledger_tables"},
	}
	want := map[int]string{1: "aaa", 2: ""}
	if diff := cmp.Diff(want, checksums(applied)); diff != "" {
		t.Errorf("checksums mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddedMigrationsArePending(t *testing.T) {
	all, err := migrations.Load(migrations.BigQuery, migrations.BigQueryDir, map[string]string{
		"PROJECT_ID": "proj",
		"DATASET_ID": "ledger",
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(all) == 0 || all[0].Name != "schema_migrations" {
		t.Fatalf("expected schema_migrations to come first, got %+v", all)
	}

	pending, drifted := migrations.Pending(all, checksums([]AppliedMigration{
		{Version: 1, Checksum: all[0].Checksum},
	}))
	if len(drifted) != 0 {
		t.Errorf("unexpected drift: %+v", drifted)
	}
	if len(pending) != len(all)-1 {
		t.Errorf("got %d pending, want %d", len(pending), len(all)-1)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&googleapi.Error{Code: http.StatusNotFound}, true},
		{fmt.Errorf("reading: %w", &googleapi.Error{Code: http.StatusNotFound}), true},
		{&googleapi.Error{Code: http.StatusForbidden}, false},
		{errors.New("Not found"), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTable(t *testing.T) {
	m := &migrator{projectID: "proj", datasetID: "ledger"}
	if got, want := m.table(), "`proj.ledger.schema_migrations`"; got != want {
		t.Errorf("table() = %s, want %s", got, want)
	}
}
