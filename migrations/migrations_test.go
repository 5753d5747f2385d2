package migrations

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0042_add_index.sql", true, 42, "add_index"},
		{"001_invalid.sql", false, 0, ""},       // wrong number format
		{"0001_test", false, 0, ""},             // missing .sql
		{"0001.sql", false, 0, ""},              // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseFilename(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("ParseFilename(%q) = (%d, %q, %v), want (%d, %q, %v)",
					tt.filename, version, name, ok, tt.version, tt.name, tt.valid)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("CREATE TABLE test (id INT64);"))
	b := Checksum([]byte("CREATE TABLE test (id INT64);"))
	c := Checksum([]byte("CREATE TABLE different (id INT64);"))

	if a != b {
		t.Error("same content should have the same checksum")
	}
	if a == c {
		t.Error("different content should have different checksums")
	}
	if len(a) != 64 {
		t.Errorf("checksum length = %d, want 64", len(a))
	}
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")},
		"m/0001_first.sql":  {Data: []byte("SELECT 1")},
		"m/README.md":       {Data: []byte("ignored")},
	}

	got, err := Load(fsys, "m", map[string]string{"PROJECT_ID": "p", "DATASET_ID": "d"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 2 || got[0].Label() != "0001_first" || got[1].Label() != "0002_second" {
		t.Fatalf("unexpected migrations %+v", got)
	}
	if got[1].SQL != "SELECT 2 FROM `p.d.t`" {
		t.Errorf("placeholders not replaced: %q", got[1].SQL)
	}
	if got[1].Checksum != Checksum(fsys["m/0002_second.sql"].Data) {
		t.Error("checksum should be computed on the original content")
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte("SELECT 1")},
		"m/0001_b.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := Load(fsys, "m", nil); err == nil {
		t.Error("expected duplicate version error")
	}
}

func TestEmbedded(t *testing.T) {
	for _, tc := range []struct {
		dir  string
		load func() ([]Migration, error)
	}{
		{BigQueryDir, func() ([]Migration, error) {
			return Load(BigQuery, BigQueryDir, map[string]string{"PROJECT_ID": "proj", "DATASET_ID": "ledger"})
		}},
		{SQLiteDir, func() ([]Migration, error) { return Load(SQLite, SQLiteDir, nil) }},
	} {
		t.Run(tc.dir, func(t *testing.T) {
			ms, err := tc.load()
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if len(ms) == 0 {
				t.Fatal("no embedded migrations")
			}
			for i, m := range ms {
				if m.Version != i+1 {
					t.Errorf("migration %s has version %d, want %d", m.Filename, m.Version, i+1)
				}
				if strings.Contains(m.SQL, "{{") {
					t.Errorf("migration %s has unreplaced placeholders", m.Filename)
				}
			}
		})
	}
}

func TestPending(t *testing.T) {
	all := []Migration{
		{Version: 1, Checksum: "a"},
		{Version: 2, Checksum: "b"},
		{Version: 3, Checksum: "c"},
	}
	pending, drifted := Pending(all, map[int]string{1: "a", 2: "changed"})
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("pending = %+v", pending)
	}
	if len(drifted) != 1 || drifted[0].Version != 2 {
		t.Errorf("drifted = %+v", drifted)
	}
}
