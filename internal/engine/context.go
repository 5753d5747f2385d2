// Package engine ties the ledger components together for one owner. A
// ReconciliationContext carries everything a run needs; nothing is global.
package engine

import (
	"github.com/dvloznov/finance-ledger/internal/classifier"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/normalize"
	"github.com/dvloznov/finance-ledger/internal/transfer"
)

// ReconciliationContext owns the memory table, rule table, account registry
// and transfer settings of one owner.
type ReconciliationContext struct {
	Owner      string
	Memory     *classifier.OverrideTable
	Rules      classifier.RuleTable
	Accounts   *domain.Registry
	Contacts   []string
	Transfer   transfer.Config
	Normalizer *normalize.Normalizer
}

// Option configures a ReconciliationContext.
type Option func(*ReconciliationContext)

// WithMemory sets the learned overrides.
func WithMemory(m *classifier.OverrideTable) Option {
	return func(c *ReconciliationContext) { c.Memory = m }
}

// WithRules replaces the default rule table.
func WithRules(r classifier.RuleTable) Option {
	return func(c *ReconciliationContext) { c.Rules = r }
}

// WithAccounts sets the explicitly created accounts.
func WithAccounts(accounts ...domain.Account) Option {
	return func(c *ReconciliationContext) { c.Accounts = domain.NewRegistry(accounts...) }
}

// WithContacts sets the known personal contacts.
func WithContacts(names ...string) Option {
	return func(c *ReconciliationContext) { c.Contacts = names }
}

// WithTransferConfig replaces the default transfer settings.
func WithTransferConfig(cfg transfer.Config) Option {
	return func(c *ReconciliationContext) { c.Transfer = cfg }
}

// WithBoilerplate adds label phrases stripped by the normalizer.
func WithBoilerplate(phrases ...string) Option {
	return func(c *ReconciliationContext) { c.Normalizer = normalize.New(phrases...) }
}

// NewContext returns a context with default rules, an empty memory and no
// accounts, adjusted by opts.
func NewContext(owner string, opts ...Option) *ReconciliationContext {
	c := &ReconciliationContext{
		Owner:      owner,
		Memory:     classifier.NewOverrideTable(),
		Rules:      classifier.DefaultRules(),
		Accounts:   domain.NewRegistry(),
		Transfer:   transfer.DefaultConfig(),
		Normalizer: normalize.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classifier builds the classifier for this context.
func (c *ReconciliationContext) Classifier() *classifier.Classifier {
	return classifier.New(
		c.Memory,
		transfer.NewDetector(c.Transfer, c.Accounts),
		c.Rules,
		classifier.WithContacts(c.Contacts...),
		classifier.WithNormalizer(c.Normalizer),
	)
}
