package classifier

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/normalize"
)

type overrideKey struct {
	owner string
	label string
}

// OverrideTable is the learned memory: (owner, normalized label) -> category.
// Entries are only ever added or updated. Every change bumps the version.
type OverrideTable struct {
	entries map[overrideKey]domain.Override
	version int64
	now     func() time.Time
}

// NewOverrideTable loads persisted overrides. The table version starts at the
// highest loaded version.
func NewOverrideTable(overrides ...domain.Override) *OverrideTable {
	t := &OverrideTable{
		entries: make(map[overrideKey]domain.Override, len(overrides)),
		now:     time.Now,
	}
	for _, o := range overrides {
		t.entries[overrideKey{o.Owner, o.NormalizedLabel}] = o
		if o.Version > t.version {
			t.version = o.Version
		}
	}
	return t
}

// Lookup returns the override for a normalized label.
func (t *OverrideTable) Lookup(owner, normalizedLabel string) (domain.Override, bool) {
	if t == nil {
		return domain.Override{}, false
	}
	o, ok := t.entries[overrideKey{owner, normalizedLabel}]
	return o, ok
}

// Learn records category for the normalized label and returns the stored entry.
// The zero value is ready to learn.
func (t *OverrideTable) Learn(owner, normalizedLabel, category string) domain.Override {
	if t.entries == nil {
		t.entries = make(map[overrideKey]domain.Override)
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.version++
	o := domain.Override{
		Owner:           owner,
		NormalizedLabel: normalizedLabel,
		Category:        category,
		Version:         t.version,
		LearnedAt:       t.now().UTC(),
	}
	t.entries[overrideKey{owner, normalizedLabel}] = o
	return o
}

// Version returns the version of the latest change.
func (t *OverrideTable) Version() int64 {
	return t.version
}

// Len returns the number of entries.
func (t *OverrideTable) Len() int {
	return len(t.entries)
}

// Overrides returns all entries sorted by owner then label.
func (t *OverrideTable) Overrides() []domain.Override {
	out := make([]domain.Override, 0, len(t.entries))
	for _, o := range t.entries {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].NormalizedLabel < out[j].NormalizedLabel
	})
	return out
}

// ApplyOverrides returns a copy of txs where every transaction whose
// normalized label has an override carries the learned category. The input
// slice is not modified.
func ApplyOverrides(table *OverrideTable, txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	if table == nil {
		return out
	}
	for i := range out {
		label := out[i].NormalizedLabel
		if label == "" {
			label = normalize.Label(out[i].RawLabel)
		}
		if o, ok := table.Lookup(out[i].Owner, label); ok {
			out[i].NormalizedLabel = label
			out[i].Category = o.Category
		}
	}
	return out
}
