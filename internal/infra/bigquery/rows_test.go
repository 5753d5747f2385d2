package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestTransactionRow_RoundTrip(t *testing.T) {
	tx := domain.Transaction{
		ID:              "tx-1",
		Date:            time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC),
		RawLabel:        "CB LIDL 02/04",
		NormalizedLabel: "LIDL",
		Amount:          decimal.RequireFromString("-12.345"),
		Category:        "Groceries",
		Account:         "Checking",
		Owner:           "alice",
		Planned:         true,
	}
	now := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)

	row := NewTransactionRow(tx, now)
	if row.TransactionDate != (civil.Date{Year: 2025, Month: time.April, Day: 2}) {
		t.Errorf("transaction date = %v", row.TransactionDate)
	}
	if row.Extra.Valid {
		t.Error("empty extra should be NULL")
	}
	if row.Amount.Cmp(big.NewRat(-12345, 1000)) != 0 {
		t.Errorf("amount = %s", row.Amount.RatString())
	}
	if !row.CreatedTS.Equal(now) {
		t.Errorf("created = %s", row.CreatedTS)
	}

	if diff := cmp.Diff(tx, row.Transaction(), decimalEqual); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAccountRow(t *testing.T) {
	row := NewAccountRow(domain.Account{Name: "Livret A", Owner: "alice", SavingsTarget: decimal.NewFromInt(5000)})
	if row.Profile != domain.DefaultProfile {
		t.Errorf("profile = %q", row.Profile)
	}
	got := row.Account()
	if !got.OpeningBalance.IsZero() || !got.SavingsTarget.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("unexpected account %+v", got)
	}

	nulls := AccountRow{AccountName: "Cash", Profile: "Home"}
	if a := nulls.Account(); !a.OpeningBalance.IsZero() || !a.SavingsTarget.IsZero() {
		t.Errorf("NULL amounts should read as zero, got %+v", a)
	}
}

func TestExpenseRow_RoundTrip(t *testing.T) {
	e := domain.SharedExpense{
		ID:      "e1",
		GroupID: "flat",
		Label:   "Groceries",
		Payer:   "A",
		Amount:  decimal.NewFromInt(90),
		Split: map[string]decimal.Decimal{
			"C": decimal.NewFromInt(30),
			"A": decimal.NewFromInt(30),
			"B": decimal.NewFromInt(30),
		},
		Date: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
	}

	row := NewExpenseRow(e, time.Now())
	var order []string
	for _, s := range row.Shares {
		order = append(order, s.Participant)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, order); diff != "" {
		t.Errorf("shares not sorted (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(e, row.Expense(), decimalEqual); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	undated := NewExpenseRow(domain.SharedExpense{ID: "e2", Payer: "A"}, time.Now())
	if undated.ExpenseDate.Valid || !undated.Expense().Date.IsZero() {
		t.Error("zero date should be stored as NULL")
	}
}

func TestOverrideRow(t *testing.T) {
	learned := time.Date(2025, time.April, 1, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	got := OverrideRow{Owner: "alice", NormalizedLabel: "LIDL", Category: "Food", Version: 3, LearnedTS: learned}.Override()
	if got.LearnedAt.Location() != time.UTC || !got.LearnedAt.Equal(learned) || got.Version != 3 {
		t.Errorf("unexpected override %+v", got)
	}
}
