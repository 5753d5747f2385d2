package transfer

import (
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// Reasons attached to unresolved transfers.
const (
	ReasonNoMatch      = "no matching account in profile"
	ReasonAmbiguous    = "ambiguous destination"
	ReasonUnknownRoute = "route target is not an account of the profile"
)

// Resolution is the destination lookup result for one transfer.
type Resolution struct {
	Destination string
	Resolved    bool
	Reason      string
	Candidates  []string
}

// Resolve finds the destination account of a transfer recorded on
// tx.Account. Explicit routes win. Otherwise accounts of the same profile,
// excluding the source, are matched against the category text first and the
// raw text second: a full-name match outranks a match on the significant
// tokens of the name (tokens longer than two characters).
func (d *Detector) Resolve(tx domain.Transaction) Resolution {
	source := domain.AccountKey(tx.Account)
	profile := domain.DefaultProfile
	if acc, ok := d.registry.Get(tx.Account); ok {
		profile = acc.Profile
	}

	var candidates []domain.Account
	for _, acc := range d.registry.InProfile(profile) {
		if domain.AccountKey(acc.Name) != source {
			candidates = append(candidates, acc)
		}
	}

	if target, ok := d.route(tx.Category); ok {
		for _, acc := range candidates {
			if domain.AccountKey(acc.Name) == domain.AccountKey(target) {
				return Resolution{Destination: acc.Name, Resolved: true}
			}
		}
		return Resolution{Reason: ReasonUnknownRoute, Candidates: []string{target}}
	}

	for _, text := range []string{tx.Category, tx.Text()} {
		matches := match(candidates, text)
		switch {
		case len(matches) == 1:
			return Resolution{Destination: matches[0], Resolved: true}
		case len(matches) > 1:
			if d.cfg.Policy == PolicyFirstMatch {
				return Resolution{Destination: matches[0], Resolved: true, Candidates: matches}
			}
			return Resolution{Reason: ReasonAmbiguous, Candidates: matches}
		}
	}
	return Resolution{Reason: ReasonNoMatch}
}

// match returns the names of candidates found in text, full-name matches
// only when there are any, in candidate order.
func match(candidates []domain.Account, text string) []string {
	haystack := " " + fold(text) + " "
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	var full, partial []string
	for _, acc := range candidates {
		name := fold(acc.Name)
		if name == "" {
			continue
		}
		if strings.Contains(haystack, " "+name+" ") {
			full = append(full, acc.Name)
			continue
		}
		tokens := significantTokens(name)
		if len(tokens) == 0 {
			continue
		}
		all := true
		for _, tok := range tokens {
			if !strings.Contains(haystack, " "+tok+" ") {
				all = false
				break
			}
		}
		if all {
			partial = append(partial, acc.Name)
		}
	}
	if len(full) > 0 {
		return longestOnly(full)
	}
	return partial
}

// longestOnly drops names that appear inside another matched name, so
// "Holiday Savings" wins over "Savings".
func longestOnly(names []string) []string {
	var out []string
	for i, n := range names {
		inner := " " + fold(n) + " "
		shadowed := false
		for j, m := range names {
			outer := " " + fold(m) + " "
			if i != j && len(outer) > len(inner) && strings.Contains(outer, inner) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, n)
		}
	}
	return out
}

func significantTokens(name string) []string {
	var out []string
	for _, tok := range strings.Fields(name) {
		if len([]rune(tok)) > 2 {
			out = append(out, tok)
		}
	}
	return out
}
