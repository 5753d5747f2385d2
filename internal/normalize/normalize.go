// Package normalize turns free-text bank labels into stable keys used for
// matching and learning.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// DefaultBoilerplate lists banking phrases that carry no merchant information.
var DefaultBoilerplate = []string{
	"CARD PURCHASE",
	"CARD PAYMENT",
	"POS PURCHASE",
	"DEBIT CARD",
	"DIRECT DEBIT",
	"STANDING ORDER",
	"PURCHASE",
	"CHECK",
	"CHEQUE",
	"TRANSFER",
	"SEPA",
	"ACHAT CB",
	"ACHAT",
	"CARTE",
	"CB",
	"VERSEMENT",
	"PRELEVEMENT",
	"PRLV",
	"VIR",
}

var (
	// A prefix word followed by a code containing at least one digit.
	referencePattern = regexp.MustCompile(`\b(?:REF|ID|FAC|NUM|PRLV|VIREMENT|VIR|TRF)\b\s*[:.#-]?\s*[0-9A-Z]*[0-9][0-9A-Z]*\b`)
	datePattern      = regexp.MustCompile(`\b\d{2}[./]\d{2}(?:[./](?:\d{4}|\d{2}))?\b`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Normalizer canonicalizes labels. The zero value is not usable; use New.
type Normalizer struct {
	boilerplate *regexp.Regexp
}

// New builds a Normalizer that strips DefaultBoilerplate plus extra phrases.
func New(extra ...string) *Normalizer {
	phrases := make([]string, 0, len(DefaultBoilerplate)+len(extra))
	seen := make(map[string]bool)
	for _, p := range append(append([]string{}, DefaultBoilerplate...), extra...) {
		p = collapse(punctuationToSpace(strings.ToUpper(p)))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		phrases = append(phrases, regexp.QuoteMeta(p))
	}
	// Longest first so that "ACHAT CB" wins over "ACHAT".
	sort.SliceStable(phrases, func(i, j int) bool { return len(phrases[i]) > len(phrases[j]) })

	return &Normalizer{
		boilerplate: regexp.MustCompile(`\b(?:` + strings.Join(phrases, "|") + `)\b`),
	}
}

var defaultNormalizer = New()

// Label normalizes raw with the default boilerplate list.
func Label(raw string) string {
	return defaultNormalizer.Label(raw)
}

// Label returns the normalized key for raw, or domain.UnknownLabel when
// nothing meaningful is left. Label(Label(x)) == Label(x).
func (n *Normalizer) Label(raw string) string {
	cur := raw
	for {
		next := n.pass(cur)
		if next == cur {
			break
		}
		// After the first pass every change removes characters, so this terminates.
		cur = next
	}
	if cur == "" {
		return domain.UnknownLabel
	}
	return cur
}

func (n *Normalizer) pass(s string) string {
	s = strings.ToUpper(s)
	s = referencePattern.ReplaceAllString(s, " ")
	s = datePattern.ReplaceAllString(s, " ")
	s = collapse(punctuationToSpace(s))
	s = n.boilerplate.ReplaceAllString(s, " ")
	return collapse(s)
}

func punctuationToSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
