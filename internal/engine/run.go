package engine

import (
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/classifier"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/dvloznov/finance-ledger/internal/transfer"
)

// Options tune a run.
type Options struct {
	From, To       domain.Period
	IncludePlanned bool
	// Reclassify ignores categories already present on the input.
	Reclassify bool
}

// Report is the outcome of Run.
type Report struct {
	Owner        string
	Transactions []domain.Transaction // input order, owner rows categorized
	Sources      map[int]classifier.Source
	Balances     reconcile.Result
	Savings      []reconcile.SavingsProgress
}

// Run normalizes and categorizes the owner's transactions, then reconciles
// balances. It is pure: the snapshot and the context are not modified.
//
// Category precedence on input rows: a memory override always wins; an
// existing category is kept unless Reclassify is set or it is the
// uncategorized sentinel; everything else goes through the classifier.
func Run(rc *ReconciliationContext, snapshot []domain.Transaction, opts Options) (Report, error) {
	if rc == nil {
		return Report{}, fmt.Errorf("Run: nil reconciliation context")
	}
	if rc.Owner == "" {
		return Report{}, fmt.Errorf("Run: reconciliation context has no owner")
	}

	registry := rc.Accounts.Clone()
	for _, tx := range snapshot {
		if tx.Owner == rc.Owner {
			registry.Add(domain.Account{Name: tx.Account, Owner: rc.Owner})
		}
	}
	c := classifier.New(
		rc.Memory,
		transfer.NewDetector(rc.Transfer, registry),
		rc.Rules,
		classifier.WithContacts(rc.Contacts...),
		classifier.WithNormalizer(rc.Normalizer),
	)

	out := make([]domain.Transaction, len(snapshot))
	sources := make(map[int]classifier.Source)
	for i, tx := range snapshot {
		if tx.Owner != rc.Owner {
			out[i] = tx
			continue
		}
		tx.NormalizedLabel = c.Normalize(tx.RawLabel)

		if o, ok := rc.Memory.Lookup(tx.Owner, tx.NormalizedLabel); ok {
			tx.Category = o.Category
			sources[i] = classifier.SourceMemory
		} else if opts.Reclassify || tx.Category == "" || tx.Category == domain.CategoryUncategorized {
			r := c.Classify(tx)
			tx.Category = r.Category
			sources[i] = r.Source
		}
		out[i] = tx
	}

	balances := reconcile.Reconcile(reconcile.Input{
		Owner:          rc.Owner,
		Transactions:   out,
		Accounts:       rc.Accounts,
		Transfer:       rc.Transfer,
		From:           opts.From,
		To:             opts.To,
		IncludePlanned: opts.IncludePlanned,
	})

	return Report{
		Owner:        rc.Owner,
		Transactions: out,
		Sources:      sources,
		Balances:     balances,
		Savings:      reconcile.Savings(balances),
	}, nil
}
