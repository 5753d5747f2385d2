// Package settlement computes who owes whom for shared group expenses by
// accumulating a gross debt matrix and netting every pair of participants.
package settlement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/shopspring/decimal"
)

// Validation errors. Rejected expenses wrap one of these.
var (
	ErrSplitMismatch       = errors.New("split does not sum to amount")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrMissingPayer        = errors.New("payer is required")
	ErrEmptySplit          = errors.New("split is empty")
	ErrNegativeShare       = errors.New("share must not be negative")
	ErrMissingParticipant  = errors.New("participant name is required")
	ErrParticipantMismatch = errors.New("net position does not match paid minus consumed")
)

// Rejected is an expense excluded from settlement.
type Rejected struct {
	Index   int
	Expense domain.SharedExpense
	Err     error
}

// Participant summarizes one person after netting. Net is Owed - Owing and
// matches Paid - Consumed computed from the accepted expenses.
type Participant struct {
	Name     string
	Owed     decimal.Decimal // owed to them
	Owing    decimal.Decimal // they owe
	Net      decimal.Decimal
	Paid     decimal.Decimal
	Consumed decimal.Decimal
}

// Result is the outcome of Settle.
type Result struct {
	Edges        []domain.DebtEdge
	Participants []Participant
	Rejected     []Rejected
	Accepted     int
}

// Validate checks a single expense. It never corrects anything.
func Validate(e domain.SharedExpense) error {
	if e.Payer == "" {
		return fmt.Errorf("Validate: expense %q: %w", e.Label, ErrMissingPayer)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("Validate: expense %q: %s: %w", e.Label, e.Amount, ErrNonPositiveAmount)
	}
	if len(e.Split) == 0 {
		return fmt.Errorf("Validate: expense %q: %w", e.Label, ErrEmptySplit)
	}
	total := decimal.Zero
	for p, share := range e.Split {
		if p == "" {
			return fmt.Errorf("Validate: expense %q: %w", e.Label, ErrMissingParticipant)
		}
		if share.IsNegative() {
			return fmt.Errorf("Validate: expense %q: share of %s is %s: %w", e.Label, p, share, ErrNegativeShare)
		}
		total = total.Add(share)
	}
	if !money.Within(e.Amount, total) {
		return fmt.Errorf("Validate: expense %q: amount %s, split total %s: %w", e.Label, e.Amount, total, ErrSplitMismatch)
	}
	return nil
}

// Settle validates the expenses, builds the gross matrix D[debtor][creditor]
// from the accepted ones and nets every pair. Edges are emitted in pair
// order over lexicographically sorted participants.
func Settle(expenses []domain.SharedExpense) Result {
	var res Result
	gross := make(map[string]map[string]decimal.Decimal)
	paid := make(map[string]decimal.Decimal)
	consumed := make(map[string]decimal.Decimal)
	seen := make(map[string]bool)

	for i, e := range expenses {
		if err := Validate(e); err != nil {
			res.Rejected = append(res.Rejected, Rejected{Index: i, Expense: e, Err: err})
			continue
		}
		res.Accepted++
		seen[e.Payer] = true
		paid[e.Payer] = paid[e.Payer].Add(e.Amount)
		for p, share := range e.Split {
			seen[p] = true
			consumed[p] = consumed[p].Add(share)
			if p == e.Payer {
				continue
			}
			row, ok := gross[p]
			if !ok {
				row = make(map[string]decimal.Decimal)
				gross[p] = row
			}
			row[e.Payer] = row[e.Payer].Add(share)
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	owed := make(map[string]decimal.Decimal)
	owing := make(map[string]decimal.Decimal)
	for i, a := range names {
		for _, b := range names[i+1:] {
			net := gross[a][b].Sub(gross[b][a])
			var edge domain.DebtEdge
			switch {
			case money.Exceeds(net):
				edge = domain.DebtEdge{Debtor: a, Creditor: b, Amount: net}
			case money.Exceeds(net.Neg()):
				edge = domain.DebtEdge{Debtor: b, Creditor: a, Amount: net.Neg()}
			default:
				continue
			}
			res.Edges = append(res.Edges, edge)
			owing[edge.Debtor] = owing[edge.Debtor].Add(edge.Amount)
			owed[edge.Creditor] = owed[edge.Creditor].Add(edge.Amount)
		}
	}

	for _, n := range names {
		res.Participants = append(res.Participants, Participant{
			Name:     n,
			Owed:     owed[n],
			Owing:    owing[n],
			Net:      owed[n].Sub(owing[n]),
			Paid:     paid[n],
			Consumed: consumed[n],
		})
	}
	return res
}

// SettleByGroup settles each group independently.
func SettleByGroup(expenses []domain.SharedExpense) map[string]Result {
	byGroup := make(map[string][]domain.SharedExpense)
	for _, e := range expenses {
		byGroup[e.GroupID] = append(byGroup[e.GroupID], e)
	}
	out := make(map[string]Result, len(byGroup))
	for g, list := range byGroup {
		out[g] = Settle(list)
	}
	return out
}

// Verify cross-checks the netted view against the raw expenses: every
// participant's Net must equal Paid - Consumed. Each accepted expense may be
// off by less than money.Epsilon, and each dropped pair by at most
// money.Epsilon, so the tolerance grows with both counts.
func Verify(res Result) error {
	tolerance := money.Epsilon.Mul(decimal.NewFromInt(int64(res.Accepted + len(res.Participants))))
	for _, p := range res.Participants {
		diff := p.Net.Sub(p.Paid.Sub(p.Consumed)).Abs()
		if diff.GreaterThan(tolerance) {
			return fmt.Errorf("Verify: participant %s: net %s, paid %s, consumed %s: %w",
				p.Name, p.Net, p.Paid, p.Consumed, ErrParticipantMismatch)
		}
	}
	return nil
}

// Totals returns the sum owed by all debtors and the sum owed to all creditors.
func Totals(res Result) (owing, owed decimal.Decimal) {
	for _, p := range res.Participants {
		owing = owing.Add(p.Owing)
		owed = owed.Add(p.Owed)
	}
	return owing, owed
}
