package transfer

import (
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

func testRegistry() *domain.Registry {
	return domain.NewRegistry(
		domain.Account{Name: "Checking", Profile: "Alice"},
		domain.Account{Name: "Savings", Profile: "Alice"},
		domain.Account{Name: "Holiday Savings", Profile: "Alice"},
		domain.Account{Name: "Livret A", Profile: "Alice"},
		domain.Account{Name: "Joint", Profile: "Shared"},
		domain.Account{Name: "Joint Savings", Profile: "Shared"},
	)
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestDetect(t *testing.T) {
	d := NewDetector(DefaultConfig(), testRegistry())

	tests := []struct {
		name    string
		tx      domain.Transaction
		wantOK  bool
		wantCat string
		wantDir Direction
	}{
		{
			name:    "outgoing english",
			tx:      domain.Transaction{RawLabel: "TRANSFER TO SAVINGS", Account: "Checking"},
			wantOK:  true,
			wantCat: "Transfer to Savings",
			wantDir: DirectionOut,
		},
		{
			name:    "outgoing french",
			tx:      domain.Transaction{RawLabel: "VIREMENT VERS LIVRET A", Account: "Checking"},
			wantOK:  true,
			wantCat: "Transfer to Livret A",
			wantDir: DirectionOut,
		},
		{
			name:    "incoming",
			tx:      domain.Transaction{RawLabel: "Transfer from checking", Account: "Savings"},
			wantOK:  true,
			wantCat: "Transfer from Checking",
			wantDir: DirectionIn,
		},
		{
			name:    "longest name wins",
			tx:      domain.Transaction{RawLabel: "TRANSFER TO HOLIDAY SAVINGS", Account: "Checking"},
			wantOK:  true,
			wantCat: "Transfer to Holiday Savings",
			wantDir: DirectionOut,
		},
		{
			name:    "marker in extended text",
			tx:      domain.Transaction{RawLabel: "VIR SEPA 0042", Extra: "vers Joint", Account: "Checking"},
			wantOK:  true,
			wantCat: "Transfer to Joint",
			wantDir: DirectionOut,
		},
		{
			name:    "mention without direction",
			tx:      domain.Transaction{RawLabel: "SAVINGS SWEEP", Account: "Checking"},
			wantOK:  true,
			wantCat: domain.CategoryInternalTransfer,
		},
		{
			name:   "source account is ignored",
			tx:     domain.Transaction{RawLabel: "INTEREST CHECKING", Account: "Checking"},
			wantOK: false,
		},
		{
			name:   "partial word does not match",
			tx:     domain.Transaction{RawLabel: "JOINTS AND BOLTS", Account: "Checking"},
			wantOK: false,
		},
		{
			name:   "empty label",
			tx:     domain.Transaction{Account: "Checking"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Detect(tt.tx)
			if ok != tt.wantOK {
				t.Fatalf("Detect ok = %v, want %v (%+v)", ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if got.Category != tt.wantCat {
				t.Errorf("category = %q, want %q", got.Category, tt.wantCat)
			}
			if got.Direction != tt.wantDir {
				t.Errorf("direction = %v, want %v", got.Direction, tt.wantDir)
			}
		})
	}
}

func TestIsTransferCategory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CategoryPrefixes = []string{"Epargne"}
	cfg.Routes = map[string]string{"Monthly Sweep": "Savings"}
	d := NewDetector(cfg, testRegistry())

	for _, c := range []string{"Transfer to Savings", "transfer from Joint", "Internal Transfer", "🔄 Virement Livret A", "EPARGNE mensuelle", "monthly sweep"} {
		if !d.IsTransferCategory(c) {
			t.Errorf("expected %q to be a transfer category", c)
		}
	}
	for _, c := range []string{"Groceries", "Transfers", "", domain.CategoryUncategorized} {
		if d.IsTransferCategory(c) {
			t.Errorf("expected %q not to be a transfer category", c)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		routes     map[string]string
		tx         domain.Transaction
		wantDest   string
		wantReason string
	}{
		{
			name:     "from category",
			tx:       domain.Transaction{Category: "Transfer to Savings", Account: "Checking"},
			wantDest: "Savings",
		},
		{
			name:     "full name beats shared token",
			tx:       domain.Transaction{Category: "Transfer to Holiday Savings", Account: "Checking"},
			wantDest: "Holiday Savings",
		},
		{
			name:     "token match",
			tx:       domain.Transaction{Category: "Transfer to Livret", Account: "Checking"},
			wantDest: "Livret A",
		},
		{
			name:     "falls back to label",
			tx:       domain.Transaction{Category: domain.CategoryInternalTransfer, RawLabel: "SWEEP SAVINGS", Account: "Checking"},
			wantDest: "Savings",
		},
		{
			name:       "other profile is not a candidate",
			tx:         domain.Transaction{Category: "Transfer to Joint", Account: "Checking"},
			wantReason: ReasonNoMatch,
		},
		{
			name:       "ambiguous under strict policy",
			tx:         domain.Transaction{Category: domain.CategoryInternalTransfer, RawLabel: "SAVINGS LIVRET A", Account: "Checking"},
			wantReason: ReasonAmbiguous,
		},
		{
			name:     "first match policy picks registry order",
			policy:   PolicyFirstMatch,
			tx:       domain.Transaction{Category: domain.CategoryInternalTransfer, RawLabel: "SAVINGS LIVRET A", Account: "Checking"},
			wantDest: "Savings",
		},
		{
			name:     "source excluded",
			tx:       domain.Transaction{Category: "Transfer to Joint Savings", Account: "Joint"},
			wantDest: "Joint Savings",
		},
		{
			name:     "explicit route",
			routes:   map[string]string{"Rent pot": "Holiday Savings"},
			tx:       domain.Transaction{Category: "Rent Pot", Account: "Checking"},
			wantDest: "Holiday Savings",
		},
		{
			name:       "route to unknown account",
			routes:     map[string]string{"Rent pot": "Brokerage"},
			tx:         domain.Transaction{Category: "Rent pot", Account: "Checking"},
			wantReason: ReasonUnknownRoute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.policy != "" {
				cfg.Policy = tt.policy
			}
			cfg.Routes = tt.routes
			d := NewDetector(cfg, testRegistry())

			got := d.Resolve(tt.tx)
			if tt.wantDest != "" {
				if !got.Resolved || got.Destination != tt.wantDest {
					t.Fatalf("Resolve = %+v, want destination %q", got, tt.wantDest)
				}
				return
			}
			if got.Resolved {
				t.Fatalf("expected unresolved, got %+v", got)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestPairCounterparts(t *testing.T) {
	d := NewDetector(DefaultConfig(), testRegistry())
	txs := []domain.Transaction{
		{Date: day(1), Account: "Checking", Amount: decimal.NewFromInt(-50), Category: "Transfer to Savings"},
		{Date: day(2), Account: "Savings", Amount: decimal.NewFromInt(50)},
		{Date: day(2), Account: "Savings", Amount: decimal.NewFromInt(50)},
		{Date: day(10), Account: "Checking", Amount: decimal.NewFromInt(-20), Category: "Transfer to Savings"},
		{Date: day(20), Account: "Savings", Amount: decimal.NewFromInt(20)},
		{Date: day(21), Account: "Checking", Amount: decimal.NewFromInt(-50), Category: "Transfer to Savings"},
	}
	legs := []Leg{
		{Index: 5, Resolution: Resolution{Destination: "Savings", Resolved: true}},
		{Index: 0, Resolution: Resolution{Destination: "Savings", Resolved: true}},
		{Index: 3, Resolution: Resolution{Destination: "Savings", Resolved: true}},
	}

	pairs := d.PairCounterparts(txs, legs)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %+v", pairs)
	}
	if pairs[0].Leg != 0 || pairs[0].Counterpart != 1 {
		t.Errorf("unexpected pair %+v", pairs[0])
	}
}

func TestPairCounterparts_BothLegsCategorized(t *testing.T) {
	d := NewDetector(DefaultConfig(), testRegistry())
	txs := []domain.Transaction{
		{Date: day(1), Account: "Checking", Amount: decimal.NewFromInt(-75), Category: "Transfer to Savings"},
		{Date: day(1), Account: "Savings", Amount: decimal.NewFromInt(75), Category: "Transfer from Checking"},
	}
	legs := []Leg{
		{Index: 0, Resolution: Resolution{Destination: "Savings", Resolved: true}},
		{Index: 1, Resolution: Resolution{Destination: "Checking", Resolved: true}},
	}

	pairs := d.PairCounterparts(txs, legs)
	if len(pairs) != 1 || pairs[0].Leg != 0 || pairs[0].Counterpart != 1 {
		t.Fatalf("unexpected pairs %+v", pairs)
	}
}
