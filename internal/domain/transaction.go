package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category sentinels assigned by the classifier when nothing more specific
// applies.
const (
	CategoryUncategorized    = "Uncategorized"
	CategoryOtherIncome      = "Other Income"
	CategoryInternalTransfer = "Internal Transfer"
	CategoryFromContact      = "Received From Contact"
)

// UnknownLabel is the normalized form of a label that has no meaningful text left.
const UnknownLabel = "UNKNOWN"

// Transaction is one signed money movement on one account.
// Positive amounts are income, negative amounts are expenses.
type Transaction struct {
	ID              string
	Date            time.Time
	RawLabel        string
	Extra           string // extended bank text, searched together with RawLabel
	NormalizedLabel string // derived, see normalize.Label
	Amount          decimal.Decimal
	Category        string
	Account         string
	Owner           string
	Planned         bool // forecast entry, excluded from balances unless requested
}

// Period returns the calendar month the transaction belongs to.
func (t Transaction) Period() Period {
	return PeriodOf(t.Date)
}

// Text is the raw text used by keyword and transfer matching.
func (t Transaction) Text() string {
	if t.Extra == "" {
		return t.RawLabel
	}
	return t.RawLabel + " " + t.Extra
}

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("ParsePeriod: parsing %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before reports whether p is strictly earlier than q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// Next returns the following month.
func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// PeriodsBetween lists every period from first to last inclusive.
// It returns nil when last is before first.
func PeriodsBetween(first, last Period) []Period {
	if last.Before(first) {
		return nil
	}
	var out []Period
	for p := first; !last.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}
