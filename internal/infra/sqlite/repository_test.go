package sqlite

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(d int) time.Time {
	return time.Date(2025, time.April, d, 0, 0, 0, 0, time.UTC)
}

func TestOpen_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	var count int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count == 0 {
		t.Fatal("no migration recorded")
	}

	if err := migrate(ctx, repo.db); err != nil {
		t.Fatalf("second migrate returned error: %v", err)
	}
	var again int
	repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&again)
	if again != count {
		t.Errorf("migrations applied twice: %d then %d", count, again)
	}
}

func TestMigrate_WarnsOnDrift(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.db.Exec(`UPDATE schema_migrations SET checksum = 'edited' WHERE version = 1`); err != nil {
		t.Fatalf("tampering checksum: %v", err)
	}

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))
	if err := migrate(ctx, repo.db); err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "modified since it ran") || !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected a drift warning, got: %s", buf.String())
	}
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	in := []domain.Transaction{
		{ID: "b", Owner: "alice", Account: "Checking", Date: day(3), RawLabel: "RENT", Amount: decimal.NewFromInt(-800)},
		{ID: "a", Owner: "alice", Account: "Checking", Date: day(1), RawLabel: "CB LIDL", Extra: "PARIS", Amount: decimal.RequireFromString("-12.35"), Planned: true},
		{ID: "c", Owner: "bob", Account: "Joint", Date: day(2), RawLabel: "SALARY", Amount: decimal.NewFromInt(2000)},
	}
	if err := repo.InsertTransactions(ctx, in); err != nil {
		t.Fatalf("InsertTransactions returned error: %v", err)
	}

	got, err := repo.ListTransactions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	want := []domain.Transaction{in[1], in[0]}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("transactions mismatch (-want +got):\n%s", diff)
	}

	updated := got[0]
	updated.Category = "Groceries"
	updated.NormalizedLabel = "LIDL"
	if err := repo.UpdateCategories(ctx, []domain.Transaction{updated}); err != nil {
		t.Fatalf("UpdateCategories returned error: %v", err)
	}
	got, _ = repo.ListTransactions(ctx, "alice")
	if got[0].Category != "Groceries" || got[0].NormalizedLabel != "LIDL" || got[1].Category != "" {
		t.Errorf("unexpected rows after update %+v", got)
	}

	// A failing insert rolls the delete back.
	err = repo.ReplaceTransactions(ctx, "alice", []domain.Transaction{
		{ID: "dup", Owner: "alice", Account: "Checking", Date: day(4), Amount: decimal.NewFromInt(1)},
		{ID: "dup", Owner: "alice", Account: "Checking", Date: day(5), Amount: decimal.NewFromInt(2)},
	})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if got, _ := repo.ListTransactions(ctx, "alice"); len(got) != 2 {
		t.Errorf("alice's rows should survive a failed replace, got %d", len(got))
	}

	if err := repo.ReplaceTransactions(ctx, "alice", []domain.Transaction{
		{ID: "d", Owner: "alice", Account: "Checking", Date: day(4), RawLabel: "NEW", Amount: decimal.NewFromInt(5)},
	}); err != nil {
		t.Fatalf("ReplaceTransactions returned error: %v", err)
	}
	if got, _ := repo.ListTransactions(ctx, "alice"); len(got) != 1 || got[0].ID != "d" {
		t.Errorf("expected only the new row for alice, got %+v", got)
	}
	if got, _ := repo.ListTransactions(ctx, "bob"); len(got) != 1 {
		t.Errorf("bob's rows should survive, got %d", len(got))
	}
	if err := repo.ReplaceTransactions(ctx, "", nil); err == nil {
		t.Error("expected error for empty owner")
	}
}

func TestInsertTransactions_AssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if err := repo.InsertTransactions(ctx, []domain.Transaction{
		{Owner: "alice", Date: day(1), Amount: decimal.NewFromInt(1)},
		{Owner: "alice", Date: day(1), Amount: decimal.NewFromInt(2)},
	}); err != nil {
		t.Fatalf("InsertTransactions returned error: %v", err)
	}
	got, _ := repo.ListTransactions(ctx, "alice")
	if len(got) != 2 || got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected two distinct ids, got %+v", got)
	}
	if !got[0].Amount.Equal(decimal.NewFromInt(1)) {
		t.Error("same-day rows should keep insertion order")
	}
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	accounts := []domain.Account{
		{Name: "Checking", Owner: "alice", Profile: "Home", OpeningBalance: decimal.NewFromInt(100)},
		{Name: "Joint", Profile: "Household"},
		{Name: "Other", Owner: "bob"},
		{Name: " checking ", Owner: "alice", Profile: "Home", OpeningBalance: decimal.NewFromInt(250), SavingsTarget: decimal.NewFromInt(1000)},
	}
	for _, a := range accounts {
		if err := repo.UpsertAccount(ctx, a); err != nil {
			t.Fatalf("UpsertAccount(%s) returned error: %v", a.Name, err)
		}
	}

	got, err := repo.ListAccounts(ctx, "alice")
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	want := []domain.Account{
		{Name: "Checking", Owner: "alice", Profile: "Home", OpeningBalance: decimal.NewFromInt(250), SavingsTarget: decimal.NewFromInt(1000)},
		{Name: "Joint", Profile: "Household", OpeningBalance: decimal.Zero, SavingsTarget: decimal.Zero},
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("accounts mismatch (-want +got):\n%s", diff)
	}

	bob, _ := repo.ListAccounts(ctx, "bob")
	if len(bob) != 2 || bob[1].Profile != domain.DefaultProfile {
		t.Errorf("unexpected accounts for bob %+v", bob)
	}

	if err := repo.UpsertAccount(ctx, domain.Account{Name: "  "}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	learned := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
	saves := []domain.Override{
		{Owner: "alice", NormalizedLabel: "LIDL", Category: "Food", Version: 1, LearnedAt: learned},
		{Owner: "alice", NormalizedLabel: "EDF", Category: "Utilities", Version: 2, LearnedAt: learned},
		{Owner: "alice", NormalizedLabel: "LIDL", Category: "Groceries", Version: 3, LearnedAt: learned},
		{Owner: "bob", NormalizedLabel: "LIDL", Category: "Shopping", Version: 1, LearnedAt: learned},
	}
	for _, o := range saves {
		if err := repo.SaveOverride(ctx, o); err != nil {
			t.Fatalf("SaveOverride returned error: %v", err)
		}
	}

	got, err := repo.ListOverrides(ctx, "alice")
	if err != nil {
		t.Fatalf("ListOverrides returned error: %v", err)
	}
	want := []domain.Override{saves[1], saves[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}

	if err := repo.SaveOverride(ctx, domain.Override{Owner: "alice"}); err == nil {
		t.Error("expected error without a normalized label")
	}
}

func TestExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	in := []domain.SharedExpense{
		{ID: "e2", GroupID: "flat", Label: "Dinner", Payer: "B", Amount: decimal.NewFromInt(30), Date: day(5),
			Split: map[string]decimal.Decimal{"A": decimal.NewFromInt(15), "B": decimal.NewFromInt(15)}},
		{ID: "e1", GroupID: "flat", Label: "Groceries", Payer: "A", Amount: decimal.NewFromInt(90), Date: day(1),
			Split: map[string]decimal.Decimal{"A": decimal.NewFromInt(30), "B": decimal.NewFromInt(30), "C": decimal.NewFromInt(30)}},
		{ID: "x", GroupID: "trip", Payer: "C", Amount: decimal.NewFromInt(10), Split: map[string]decimal.Decimal{}},
	}
	if err := repo.InsertExpenses(ctx, in); err != nil {
		t.Fatalf("InsertExpenses returned error: %v", err)
	}

	got, err := repo.ListExpenses(ctx, "flat")
	if err != nil {
		t.Fatalf("ListExpenses returned error: %v", err)
	}
	if diff := cmp.Diff([]domain.SharedExpense{in[1], in[0]}, got, decimalEqual); diff != "" {
		t.Errorf("expenses mismatch (-want +got):\n%s", diff)
	}

	trip, _ := repo.ListExpenses(ctx, "trip")
	if diff := cmp.Diff(in[2:], trip, decimalEqual); diff != "" {
		t.Errorf("undated expense mismatch (-want +got):\n%s", diff)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, c := range []struct{ owner, name string }{
		{"", "Groceries"},
		{"alice", "Rent"},
		{"bob", "Fuel"},
		{"alice", "Groceries"},
	} {
		if err := repo.AddCategory(ctx, c.owner, c.name); err != nil {
			t.Fatalf("AddCategory returned error: %v", err)
		}
	}

	got, err := repo.ListCategories(ctx, "alice")
	if err != nil {
		t.Fatalf("ListCategories returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"Groceries", "Rent"}, got); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}
