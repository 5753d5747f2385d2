// Package transfer recognizes money moving between an owner's own accounts,
// resolves the destination account of such transfers and pairs transfer legs
// with counterparts the bank already reported.
package transfer

import (
	"strings"
	"unicode"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// Policy controls what happens when several accounts match a transfer.
type Policy string

const (
	// PolicyStrict reports ambiguous destinations as unresolved.
	PolicyStrict Policy = "strict"
	// PolicyFirstMatch picks the first matching account in registry order.
	PolicyFirstMatch Policy = "first-match"
)

// Category prefixes produced by the detector.
const (
	outgoingPrefix = "Transfer to "
	incomingPrefix = "Transfer from "
	legacyPrefix   = "🔄"
)

// Config holds the transfer heuristics. Markers are matched as whole words.
type Config struct {
	OutgoingMarkers []string
	IncomingMarkers []string
	// WindowDays bounds the date distance between two legs of one transfer.
	WindowDays int
	Policy     Policy
	// Routes maps a transfer category to its destination account and takes
	// precedence over name inference.
	Routes map[string]string
	// CategoryPrefixes lists extra category prefixes treated as transfers.
	CategoryPrefixes []string
}

// DefaultConfig returns the stock markers, a three day pairing window and the
// strict policy.
func DefaultConfig() Config {
	return Config{
		OutgoingMarkers: []string{"TO", "VERS"},
		IncomingMarkers: []string{"FROM", "DE"},
		WindowDays:      3,
		Policy:          PolicyStrict,
	}
}

// Direction is the direction of a detected transfer relative to the source.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionOut
	DirectionIn
)

// Detection is the outcome of Detect.
type Detection struct {
	Category  string
	Account   string // the own account mentioned in the text
	Direction Direction
}

// Detector flags transactions whose text names one of the owner's accounts.
type Detector struct {
	cfg      Config
	registry *domain.Registry
}

// NewDetector returns a detector over the given account registry.
func NewDetector(cfg Config, registry *domain.Registry) *Detector {
	if registry == nil {
		registry = domain.NewRegistry()
	}
	return &Detector{cfg: cfg, registry: registry}
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Registry returns the account registry the detector searches.
func (d *Detector) Registry() *domain.Registry {
	return d.registry
}

// Detect inspects the raw text of tx. A directional marker followed by an own
// account name yields "Transfer to X" or "Transfer from X"; a bare mention
// yields the generic internal transfer category. The source account itself
// is never a match.
func (d *Detector) Detect(tx domain.Transaction) (Detection, bool) {
	text := fold(tx.Text())
	if text == "" {
		return Detection{}, false
	}
	haystack := " " + text + " "
	source := domain.AccountKey(tx.Account)

	var mentioned []string
	for _, acc := range d.registry.Accounts() {
		if domain.AccountKey(acc.Name) == source {
			continue
		}
		name := fold(acc.Name)
		if name != "" && strings.Contains(haystack, " "+name+" ") {
			mentioned = append(mentioned, acc.Name)
		}
	}
	mentioned = longestOnly(mentioned)
	if len(mentioned) == 0 {
		return Detection{}, false
	}

	for _, acc := range mentioned {
		pos := strings.Index(haystack, " "+fold(acc)+" ")
		switch d.directionBefore(haystack[:pos+1]) {
		case DirectionOut:
			return Detection{Category: outgoingPrefix + acc, Account: acc, Direction: DirectionOut}, true
		case DirectionIn:
			return Detection{Category: incomingPrefix + acc, Account: acc, Direction: DirectionIn}, true
		}
	}
	return Detection{Category: domain.CategoryInternalTransfer, Account: mentioned[0]}, true
}

// directionBefore returns the direction of the marker closest to the end of prefix.
func (d *Detector) directionBefore(prefix string) Direction {
	best, dir := -1, DirectionNone
	for _, m := range d.cfg.OutgoingMarkers {
		if i := strings.LastIndex(prefix, " "+fold(m)+" "); i > best {
			best, dir = i, DirectionOut
		}
	}
	for _, m := range d.cfg.IncomingMarkers {
		if i := strings.LastIndex(prefix, " "+fold(m)+" "); i > best {
			best, dir = i, DirectionIn
		}
	}
	return dir
}

// IsTransferCategory reports whether category denotes an internal transfer.
func (d *Detector) IsTransferCategory(category string) bool {
	if IsTransferCategory(category) {
		return true
	}
	upper := strings.ToUpper(strings.TrimSpace(category))
	for _, p := range d.cfg.CategoryPrefixes {
		if p != "" && strings.HasPrefix(upper, strings.ToUpper(p)) {
			return true
		}
	}
	if _, ok := d.route(category); ok {
		return true
	}
	return false
}

// IsTransferCategory reports whether category is one of the built-in
// transfer categories.
func IsTransferCategory(category string) bool {
	c := strings.TrimSpace(category)
	upper := strings.ToUpper(c)
	return strings.HasPrefix(upper, strings.ToUpper(outgoingPrefix)) ||
		strings.HasPrefix(upper, strings.ToUpper(incomingPrefix)) ||
		upper == strings.ToUpper(domain.CategoryInternalTransfer) ||
		strings.HasPrefix(c, legacyPrefix)
}

func (d *Detector) route(category string) (string, bool) {
	key := fold(category)
	for k, v := range d.cfg.Routes {
		if fold(k) == key {
			return v, true
		}
	}
	return "", false
}

// fold upper-cases s and reduces every run of non-alphanumerics to one space.
func fold(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
