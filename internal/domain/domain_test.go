package domain

import (
	"testing"
	"time"
)

func TestPeriodsBetween(t *testing.T) {
	first := Period{Year: 2024, Month: time.November}
	last := Period{Year: 2025, Month: time.February}

	got := PeriodsBetween(first, last)
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(got) != len(want) {
		t.Fatalf("expected %d periods, got %d", len(want), len(got))
	}
	for i, p := range got {
		if p.String() != want[i] {
			t.Errorf("period %d = %s, want %s", i, p, want[i])
		}
	}

	if PeriodsBetween(last, first) != nil {
		t.Error("expected nil for an inverted range")
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Year != 2025 || p.Month != time.March {
		t.Errorf("got %v", p)
	}
	if _, err := ParsePeriod("03/2025"); err == nil {
		t.Error("expected error for malformed period")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		Account{Name: "Checking", Profile: "Alice"},
		Account{Name: " savings ", Profile: "Alice"},
		Account{Name: "CHECKING", Profile: "Bob"},
		Account{Name: "Cash", Profile: " alice "},
	)

	if r.Len() != 3 {
		t.Fatalf("expected duplicate to be ignored, got %d accounts", r.Len())
	}
	a, ok := r.Get("SAVINGS")
	if !ok {
		t.Fatal("expected case-insensitive lookup to succeed")
	}
	if a.Name != "savings" {
		t.Errorf("expected trimmed name, got %q", a.Name)
	}

	if r.Add(Account{Name: "Joint"}) != true {
		t.Error("expected new account to be added")
	}
	joint, _ := r.Get("joint")
	if joint.Profile != DefaultProfile {
		t.Errorf("expected default profile, got %q", joint.Profile)
	}

	if got := len(r.InProfile("alice")); got != 3 {
		t.Errorf("expected 3 accounts in profile Alice, got %d", got)
	}
	if cash, _ := r.Get("cash"); cash.Profile != "Alice" {
		t.Errorf("expected profile spelling of the first account, got %q", cash.Profile)
	}
	profiles := r.Profiles()
	if len(profiles) != 2 || profiles[0] != "Alice" || profiles[1] != DefaultProfile {
		t.Errorf("unexpected profiles %v", profiles)
	}

	clone := r.Clone()
	clone.Add(Account{Name: "Other"})
	if r.Len() == clone.Len() {
		t.Error("expected clone to be independent")
	}
}

func TestTransactionText(t *testing.T) {
	tx := Transaction{RawLabel: "CARD 12", Extra: "Paris"}
	if tx.Text() != "CARD 12 Paris" {
		t.Errorf("unexpected text %q", tx.Text())
	}
	tx.Extra = ""
	if tx.Text() != "CARD 12" {
		t.Errorf("unexpected text %q", tx.Text())
	}
}
