// Package money holds the amount helpers shared by the ledger: the single
// comparison tolerance, lenient parsing of bank-formatted amounts and display
// formatting.
package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used for every amount comparison in the ledger:
// split validation, counterpart matching and edge emission.
var Epsilon = decimal.New(1, -2)

// DefaultCurrency is used for display when nothing else is configured.
const DefaultCurrency = "EUR"

// Within reports whether |a-b| < Epsilon.
func Within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// Exceeds reports whether v > Epsilon.
func Exceeds(v decimal.Decimal) bool {
	return v.GreaterThan(Epsilon)
}

// IsZero reports whether v is within Epsilon of zero.
func IsZero(v decimal.Decimal) bool {
	return Within(v, decimal.Zero)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

var stripped = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"€", "",
	"$", "",
	"£", "",
	"EUR", "",
	"USD", "",
	"GBP", "",
)

// ParseAmount parses a bank-formatted amount such as "1 234,56 €",
// "-1,234.56" or "+12.5". When both ',' and '.' appear, the last one is the
// decimal separator and the other is a thousands separator. A lone ',' is a
// decimal separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("ParseAmount: empty amount")
	}

	clean := stripped.Replace(strings.ToUpper(raw))
	negative := false
	if strings.HasSuffix(clean, "-") {
		negative = true
		clean = strings.TrimSuffix(clean, "-")
	}
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") > 1 {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.Replace(clean, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseAmount: parsing %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseAmountOrZero is ParseAmount with the ledger's recovery policy: a value
// that cannot be parsed counts as zero. ok is false when recovery happened.
func ParseAmountOrZero(s string) (d decimal.Decimal, ok bool) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Format renders an amount in the given ISO currency, e.g. "€1,234.56".
// Unknown currency codes fall back to a plain two-decimal rendering.
func Format(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	c := gomoney.GetCurrency(strings.ToUpper(currency))
	if c == nil {
		return amount.StringFixed(2) + " " + strings.ToUpper(currency)
	}
	cents := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return gomoney.New(cents, c.Code).Display()
}
