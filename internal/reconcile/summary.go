package reconcile

import (
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/transfer"
	"github.com/shopspring/decimal"
)

// MonthlySummary is the income statement of one profile for one period.
// Internal transfers are neither income nor expenses.
type MonthlySummary struct {
	Profile  string
	Period   domain.Period
	Income   decimal.Decimal
	Expenses decimal.Decimal // positive
	Net      decimal.Decimal // Income - Expenses
	Closing  decimal.Decimal // profile total at the end of the period
}

// SavingsProgress compares a profile's balance with its savings targets.
type SavingsProgress struct {
	Profile string
	Target  decimal.Decimal
	Current decimal.Decimal
	// Ratio is Current/Target, zero when no target is set.
	Ratio decimal.Decimal
}

func summarize(res Result, txs []domain.Transaction, detector *transfer.Detector) []MonthlySummary {
	if len(res.Periods) == 0 {
		return nil
	}
	periodIndex := make(map[domain.Period]int, len(res.Periods))
	for i, p := range res.Periods {
		periodIndex[p] = i
	}

	type cell struct{ income, expenses decimal.Decimal }
	cells := make(map[string][]cell)
	for _, p := range res.Profiles {
		cells[p.Profile] = make([]cell, len(res.Periods))
	}

	for _, tx := range txs {
		pi, ok := periodIndex[tx.Period()]
		if !ok || detector.IsTransferCategory(tx.Category) {
			continue
		}
		acc, ok := res.Registry.Get(tx.Account)
		if !ok {
			continue
		}
		c := &cells[acc.Profile][pi]
		if tx.Amount.IsPositive() {
			c.income = c.income.Add(tx.Amount)
		} else {
			c.expenses = c.expenses.Add(tx.Amount.Neg())
		}
	}

	var out []MonthlySummary
	for _, p := range res.Profiles {
		for pi, period := range res.Periods {
			c := cells[p.Profile][pi]
			out = append(out, MonthlySummary{
				Profile:  p.Profile,
				Period:   period,
				Income:   c.income,
				Expenses: c.expenses,
				Net:      c.income.Sub(c.expenses),
				Closing:  p.Totals[pi],
			})
		}
	}
	return out
}

// Savings reports, per profile, the sum of savings targets against the latest
// profile total. Profiles without any target are omitted.
func Savings(res Result) []SavingsProgress {
	targets := make(map[string]decimal.Decimal)
	for _, a := range res.Registry.Accounts() {
		if a.SavingsTarget.IsPositive() {
			targets[a.Profile] = targets[a.Profile].Add(a.SavingsTarget)
		}
	}

	var out []SavingsProgress
	for _, p := range res.Profiles {
		target, ok := targets[p.Profile]
		if !ok {
			continue
		}
		current := p.Opening
		if n := len(p.Totals); n > 0 {
			current = p.Totals[n-1]
		}
		out = append(out, SavingsProgress{
			Profile: p.Profile,
			Target:  target,
			Current: current,
			Ratio:   current.DivRound(target, 4),
		})
	}
	return out
}
