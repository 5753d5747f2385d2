package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/xlsx"
	"github.com/shopspring/decimal"
)

const testSnapshot = `[
	{"date": "2024-03-01", "label": "SALAIRE ACME", "amount": 1000, "account": "Checking"},
	{"date": "2024-03-05", "label": "CB LIDL 05/03", "amount": "-20,00", "account": "Checking"}
]`

// setup writes a configuration backed by a SQLite file in a temp dir.
func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	t.Setenv("LEDGER_DB_PATH", "")
	dir = t.TempDir()
	configPath = filepath.Join(dir, "ledger.yaml")
	cfg := `owner: alice
currency: EUR
storage:
  backend: sqlite
  sqlite_path: ` + filepath.Join(dir, "ledger.db") + `
accounts:
  - name: Checking
    owner: alice
    profile: Home
    opening_balance: "100"
`
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return dir, configPath
}

func run(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ledger %s returned error: %v\nstderr: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String()
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	cmd := newRootCmd(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"version", "--config", "/does/not/exist.yaml"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "Version:    dev") {
		t.Errorf("unexpected version output:\n%s", stdout.String())
	}
}

func TestImportReconcileLearnClassify(t *testing.T) {
	dir, configPath := setup(t)
	snapshot := filepath.Join(dir, "march.json")
	if err := os.WriteFile(snapshot, []byte(testSnapshot), 0o644); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}

	out := run(t, configPath, "import", snapshot)
	if !strings.Contains(out, "Imported 2 transactions") {
		t.Errorf("unexpected import output:\n%s", out)
	}

	out = run(t, configPath, "reconcile", "--from", "2024-03", "--to", "2024-03")
	if !strings.Contains(out, "Checking") || !strings.Contains(out, "2024-03") {
		t.Errorf("reconcile output misses the account or the period:\n%s", out)
	}
	if want := money.Format(decimal.NewFromInt(1080), "EUR"); !strings.Contains(out, want) {
		t.Errorf("reconcile output misses closing balance %s:\n%s", want, out)
	}

	out = run(t, configPath, "learn", "CB LIDL 05/03", "Food")
	if !strings.Contains(out, "-> Food (version 1)") {
		t.Errorf("unexpected learn output:\n%s", out)
	}

	out = run(t, configPath, "classify", "CB LIDL 12/03", "--amount", "-7.5")
	if !strings.Contains(out, "Category:   Food") || !strings.Contains(out, "Source:     memory") {
		t.Errorf("learned override not used by classify:\n%s", out)
	}

	export := filepath.Join(dir, "export.xlsx")
	run(t, configPath, "export", export, "--transactions")
	records, err := xlsx.ReadRecordsFile(export)
	if err != nil {
		t.Fatalf("ReadRecordsFile returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("exported %d rows, want 2", len(records))
	}
	for _, r := range records {
		if strings.Contains(r.Label, "LIDL") && r.Category != "Food" {
			t.Errorf("exported LIDL row has category %q, want Food", r.Category)
		}
	}
}

func TestSettle(t *testing.T) {
	dir, configPath := setup(t)

	repo, err := sqlite.Open(context.Background(), filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("sqlite.Open returned error: %v", err)
	}
	d := decimal.RequireFromString
	err = repo.InsertExpenses(context.Background(), []domain.SharedExpense{
		{GroupID: "trip", Label: "Dinner", Payer: "Alice", Amount: d("90"),
			Split: map[string]decimal.Decimal{"Alice": d("30"), "Bob": d("30"), "Carol": d("30")}},
		{GroupID: "trip", Label: "Taxi", Payer: "Bob", Amount: d("20"),
			Split: map[string]decimal.Decimal{"Alice": d("5")}},
	})
	repo.Close()
	if err != nil {
		t.Fatalf("InsertExpenses returned error: %v", err)
	}

	book := filepath.Join(dir, "trip.xlsx")
	out := run(t, configPath, "settle", "trip", "--out", book)

	thirty := money.Format(d("30"), "EUR")
	for _, want := range []string{"Bob owes Alice " + thirty, "Carol owes Alice " + thirty, "1 expenses settled, 1 rejected."} {
		if !strings.Contains(out, want) {
			t.Errorf("settle output misses %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(book); err != nil {
		t.Errorf("settlement workbook not written: %v", err)
	}
}

func TestOwnerRequired(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", "")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ledger.yaml")
	cfg := "storage:\n  sqlite_path: " + filepath.Join(dir, "ledger.db") + "\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	cmd.SetArgs([]string{"--config", configPath, "reconcile"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--owner") {
		t.Errorf("expected an owner error, got %v", err)
	}
}

func TestEngineOptions(t *testing.T) {
	tests := []struct {
		from, to string
		wantErr  bool
	}{
		{"", "", false},
		{"2024-01", "2024-06", false},
		{"2024-06", "2024-01", true},
		{"2024-13", "", true},
		{"", "june", true},
	}
	for _, tt := range tests {
		_, err := engineOptions(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("engineOptions(%q, %q) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestMergeCategories(t *testing.T) {
	got := mergeCategories([]string{"Food", " Leisure "}, []string{"food", "", "Bills"})
	want := []string{"Bills", "Food", "Leisure"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("mergeCategories = %v, want %v", got, want)
	}
}
