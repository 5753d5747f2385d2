// Package classifier assigns categories to transactions using a fixed
// precedence chain: learned memory, transfer detection, known contacts, the
// keyword rule table and finally a default.
package classifier

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/normalize"
	"github.com/dvloznov/finance-ledger/internal/transfer"
)

// Source tells which step of the chain produced a category.
type Source string

const (
	SourceMemory   Source = "memory"
	SourceTransfer Source = "transfer"
	SourceContact  Source = "contact"
	SourceRule     Source = "rule"
	SourceDefault  Source = "default"
)

// Result is the outcome of Classify.
type Result struct {
	Category string
	Source   Source
	Rule     string // name of the matching rule when Source is SourceRule
}

// Classifier is read-only with respect to its memory; learning goes through
// Recategorize or the OverrideTable directly.
type Classifier struct {
	memory     *OverrideTable
	detector   *transfer.Detector
	rules      RuleTable
	contacts   []string
	normalizer *normalize.Normalizer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithContacts sets the names of people whose incoming payments are
// categorized as money received from a contact.
func WithContacts(names ...string) Option {
	return func(c *Classifier) {
		for _, n := range names {
			if n = strings.ToUpper(strings.TrimSpace(n)); n != "" {
				c.contacts = append(c.contacts, n)
			}
		}
	}
}

// WithNormalizer replaces the default label normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Classifier) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// New builds a classifier. A nil memory or detector disables that step.
func New(memory *OverrideTable, detector *transfer.Detector, rules RuleTable, opts ...Option) *Classifier {
	c := &Classifier{
		memory:     memory,
		detector:   detector,
		rules:      rules,
		normalizer: normalize.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Memory returns the override table the classifier reads from.
func (c *Classifier) Memory() *OverrideTable {
	return c.memory
}

// Normalize returns the normalized label of raw.
func (c *Classifier) Normalize(raw string) string {
	return c.normalizer.Label(raw)
}

// Classify returns the category for tx. It never fails: degenerate input
// falls through to the default category.
func (c *Classifier) Classify(tx domain.Transaction) Result {
	label := tx.NormalizedLabel
	if label == "" {
		label = c.normalizer.Label(tx.RawLabel)
	}

	if c.memory != nil {
		if o, ok := c.memory.Lookup(tx.Owner, label); ok {
			return Result{Category: o.Category, Source: SourceMemory}
		}
	}

	if c.detector != nil {
		if d, ok := c.detector.Detect(tx); ok {
			return Result{Category: d.Category, Source: SourceTransfer}
		}
	}

	if tx.Amount.IsPositive() && len(c.contacts) > 0 {
		text := strings.ToUpper(tx.Text())
		for _, name := range c.contacts {
			if strings.Contains(text, name) {
				return Result{Category: domain.CategoryFromContact, Source: SourceContact}
			}
		}
	}

	if r, ok := c.rules.Match(tx); ok {
		return Result{Category: r.Category, Source: SourceRule, Rule: r.Name}
	}

	if tx.Amount.IsPositive() {
		return Result{Category: domain.CategoryOtherIncome, Source: SourceDefault}
	}
	return Result{Category: domain.CategoryUncategorized, Source: SourceDefault}
}

// CategorizeAll returns copies of txs with normalized labels and categories set.
func (c *Classifier) CategorizeAll(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		if tx.NormalizedLabel == "" {
			tx.NormalizedLabel = c.normalizer.Label(tx.RawLabel)
		}
		tx.Category = c.Classify(tx).Category
		out[i] = tx
	}
	return out
}

// Recategorize sets the category of txs[index]. With learn, the category is
// stored in memory and applied to every transaction of the same owner sharing
// the normalized label; otherwise only that row changes. txs is not modified.
func (c *Classifier) Recategorize(txs []domain.Transaction, index int, category string, learn bool) ([]domain.Transaction, *domain.Override, error) {
	if index < 0 || index >= len(txs) {
		return nil, nil, fmt.Errorf("Recategorize: index %d out of range [0,%d)", index, len(txs))
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, nil, fmt.Errorf("Recategorize: empty category")
	}

	if !learn {
		out := make([]domain.Transaction, len(txs))
		copy(out, txs)
		out[index].Category = category
		return out, nil, nil
	}
	if c.memory == nil {
		return nil, nil, fmt.Errorf("Recategorize: no memory table to learn into")
	}

	target := txs[index]
	label := target.NormalizedLabel
	if label == "" {
		label = c.normalizer.Label(target.RawLabel)
	}
	o := c.memory.Learn(target.Owner, label, category)

	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		if tx.NormalizedLabel == "" {
			tx.NormalizedLabel = c.normalizer.Label(tx.RawLabel)
		}
		out[i] = tx
	}
	return ApplyOverrides(c.memory, out), &o, nil
}
