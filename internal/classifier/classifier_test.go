package classifier

import (
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/transfer"
	"github.com/shopspring/decimal"
)

func newTestClassifier(memory *OverrideTable, rules RuleTable) *Classifier {
	registry := domain.NewRegistry(
		domain.Account{Name: "Checking", Owner: "alice", Profile: "alice"},
		domain.Account{Name: "Savings", Owner: "alice", Profile: "alice"},
	)
	detector := transfer.NewDetector(transfer.DefaultConfig(), registry)
	return New(memory, detector, rules, WithContacts("Jane Doe"))
}

func tx(label string, amount int64) domain.Transaction {
	return domain.Transaction{
		Owner:    "alice",
		Account:  "Checking",
		RawLabel: label,
		Amount:   decimal.NewFromInt(amount),
		Date:     time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestClassify_Precedence(t *testing.T) {
	memory := NewOverrideTable(domain.Override{Owner: "alice", NormalizedLabel: "CARREFOUR MARKET", Category: "Household"})
	c := newTestClassifier(memory, DefaultRules())

	tests := []struct {
		name       string
		tx         domain.Transaction
		wantCat    string
		wantSource Source
	}{
		{name: "memory beats rules", tx: tx("CB CARREFOUR MARKET 12/01", -30), wantCat: "Household", wantSource: SourceMemory},
		{name: "memory is per owner", tx: func() domain.Transaction { t := tx("CB CARREFOUR MARKET", -30); t.Owner = "bob"; return t }(), wantCat: "Groceries", wantSource: SourceRule},
		{name: "outgoing transfer", tx: tx("VIREMENT VERS SAVINGS", -100), wantCat: "Transfer to Savings", wantSource: SourceTransfer},
		{name: "generic transfer", tx: tx("SAVINGS SWEEP", -100), wantCat: domain.CategoryInternalTransfer, wantSource: SourceTransfer},
		{name: "incoming from contact", tx: tx("VIR SEPA JANE DOE", 100), wantCat: domain.CategoryFromContact, wantSource: SourceContact},
		{name: "contact only for income", tx: tx("VIR SEPA JANE DOE", -100), wantCat: domain.CategoryUncategorized, wantSource: SourceDefault},
		{name: "more specific rule first", tx: tx("AMAZON PRIME FR", -7), wantCat: "Subscriptions", wantSource: SourceRule},
		{name: "generic rule", tx: tx("AMAZON MKTPLACE", -25), wantCat: "Shopping", wantSource: SourceRule},
		{name: "default income", tx: tx("MYSTERY", 10), wantCat: domain.CategoryOtherIncome, wantSource: SourceDefault},
		{name: "default expense", tx: tx("MYSTERY", -10), wantCat: domain.CategoryUncategorized, wantSource: SourceDefault},
		{name: "degenerate input", tx: domain.Transaction{}, wantCat: domain.CategoryUncategorized, wantSource: SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.tx)
			if got.Category != tt.wantCat {
				t.Errorf("category = %q, want %q", got.Category, tt.wantCat)
			}
			if got.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", got.Source, tt.wantSource)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := newTestClassifier(NewOverrideTable(), DefaultRules())
	in := tx("CB NETFLIX.COM 03/02", -13)
	first := c.Classify(in)
	second := c.Classify(in)
	if first != second {
		t.Errorf("Classify not idempotent: %+v then %+v", first, second)
	}
}

func TestClassify_MemorySurvivesRuleEdits(t *testing.T) {
	memory := NewOverrideTable()
	c := newTestClassifier(memory, DefaultRules())
	netflix := tx("NETFLIX.COM", -13)

	if got := c.Classify(netflix).Category; got != "Subscriptions" {
		t.Fatalf("expected rule category before learning, got %q", got)
	}

	memory.Learn("alice", c.Normalize(netflix.RawLabel), "Entertainment")

	edited := append(RuleTable{KeywordRule("Streaming", "NETFLIX")}, DefaultRules()...)
	c = newTestClassifier(memory, edited)
	if got := c.Classify(netflix).Category; got != "Entertainment" {
		t.Errorf("memory override must win after rule edits, got %q", got)
	}
}

func TestRecategorize(t *testing.T) {
	txs := []domain.Transaction{
		tx("NETFLIX.COM 12/01", -13),
		tx("TESCO", -40),
		tx("NETFLIX.COM 12/02", -13),
		func() domain.Transaction { t := tx("NETFLIX.COM", -13); t.Owner = "bob"; return t }(),
	}

	t.Run("learn cascades to same label", func(t *testing.T) {
		memory := NewOverrideTable()
		fixed := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
		memory.now = func() time.Time { return fixed }
		c := newTestClassifier(memory, DefaultRules())

		out, o, err := c.Recategorize(txs, 0, "Entertainment", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o == nil || o.NormalizedLabel != "NETFLIX COM" || o.Version != 1 || !o.LearnedAt.Equal(fixed) {
			t.Fatalf("unexpected override %+v", o)
		}
		if out[0].Category != "Entertainment" || out[2].Category != "Entertainment" {
			t.Errorf("expected both alice rows re-tagged, got %q and %q", out[0].Category, out[2].Category)
		}
		if out[1].Category != "" {
			t.Errorf("unrelated row changed: %q", out[1].Category)
		}
		if out[3].Category != "" {
			t.Errorf("other owner's row changed: %q", out[3].Category)
		}
		if txs[0].Category != "" {
			t.Error("input slice was modified")
		}
		if memory.Version() != 1 || memory.Len() != 1 {
			t.Errorf("unexpected memory state version=%d len=%d", memory.Version(), memory.Len())
		}
	})

	t.Run("without learn only the row changes", func(t *testing.T) {
		memory := NewOverrideTable()
		c := newTestClassifier(memory, DefaultRules())

		out, o, err := c.Recategorize(txs, 0, "Entertainment", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o != nil {
			t.Errorf("expected no override, got %+v", o)
		}
		if out[0].Category != "Entertainment" || out[2].Category != "" {
			t.Errorf("unexpected categories %q %q", out[0].Category, out[2].Category)
		}
		if memory.Len() != 0 {
			t.Error("memory must not change without learn")
		}
	})

	t.Run("errors", func(t *testing.T) {
		c := newTestClassifier(NewOverrideTable(), DefaultRules())
		if _, _, err := c.Recategorize(txs, 9, "X", true); err == nil {
			t.Error("expected out of range error")
		}
		if _, _, err := c.Recategorize(txs, 0, "  ", true); err == nil {
			t.Error("expected empty category error")
		}
		noMemory := New(nil, nil, DefaultRules())
		if _, _, err := noMemory.Recategorize(txs, 0, "X", true); err == nil {
			t.Error("expected error without memory table")
		}
	})
}

func TestApplyOverrides(t *testing.T) {
	table := NewOverrideTable(
		domain.Override{Owner: "alice", NormalizedLabel: "TESCO", Category: "Groceries", Version: 4},
	)
	if table.Version() != 4 {
		t.Errorf("expected loaded version 4, got %d", table.Version())
	}

	in := []domain.Transaction{
		{Owner: "alice", RawLabel: "CB TESCO 01/02", Category: "Uncategorized"},
		{Owner: "alice", RawLabel: "SHELL", Category: "Fuel"},
	}
	out := ApplyOverrides(table, in)
	if out[0].Category != "Groceries" || out[0].NormalizedLabel != "TESCO" {
		t.Errorf("unexpected first row %+v", out[0])
	}
	if out[1].Category != "Fuel" {
		t.Errorf("unexpected second row %+v", out[1])
	}
	if in[0].Category != "Uncategorized" {
		t.Error("input was modified")
	}
}

func TestOverrideTable_ZeroValue(t *testing.T) {
	var table OverrideTable
	o := table.Learn("alice", "TESCO", "Groceries")
	if o.Version != 1 || o.LearnedAt.IsZero() {
		t.Errorf("unexpected override %+v", o)
	}
	if got, ok := table.Lookup("alice", "TESCO"); !ok || got.Category != "Groceries" {
		t.Errorf("Lookup = %+v, %v", got, ok)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestCategorizeAll(t *testing.T) {
	c := newTestClassifier(NewOverrideTable(), DefaultRules())
	out := c.CategorizeAll([]domain.Transaction{tx("CB LIDL 04/05", -20), tx("", 0)})
	if out[0].Category != "Groceries" || out[0].NormalizedLabel != "LIDL" {
		t.Errorf("unexpected row %+v", out[0])
	}
	if out[1].Category != domain.CategoryUncategorized || out[1].NormalizedLabel != domain.UnknownLabel {
		t.Errorf("unexpected row %+v", out[1])
	}
}

func TestRuleTable(t *testing.T) {
	rules := RuleTable{
		IncomeRule(KeywordRule("Salary", "ACME")),
		KeywordRule("Supplies", "ACME"),
	}
	if r, _ := rules.Match(tx("ACME LTD", 2000)); r.Category != "Salary" {
		t.Errorf("expected income rule, got %q", r.Category)
	}
	if r, _ := rules.Match(tx("ACME LTD", -20)); r.Category != "Supplies" {
		t.Errorf("expected keyword rule, got %q", r.Category)
	}
	if _, ok := rules.Match(tx("OTHER", -20)); ok {
		t.Error("expected no match")
	}
	if got := rules.Categories(); len(got) != 2 {
		t.Errorf("unexpected categories %v", got)
	}
}
