// Package reconcile derives per-account and per-profile balance series from
// opening balances and a categorized transaction snapshot. Internal
// transfers move money between accounts of one profile: the recorded leg is
// applied directly and the other side is applied synthetically unless the
// bank already reported it.
package reconcile

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/transfer"
	"github.com/shopspring/decimal"
)

// Skip reasons.
const (
	SkipOtherOwner = "belongs to another owner"
	SkipPlanned    = "planned transaction"
	SkipNoAccount  = "no account"
	SkipNoDate     = "no date"
	SkipAfterRange = "after reconciled range"
)

// Input is one reconciliation request. From and To may be left zero to span
// the periods present in Transactions.
type Input struct {
	Owner          string
	Transactions   []domain.Transaction
	Accounts       *domain.Registry
	Transfer       transfer.Config
	From, To       domain.Period
	IncludePlanned bool
}

// AccountSeries is the balance history of one account.
type AccountSeries struct {
	Account   string
	Profile   string
	Opening   decimal.Decimal
	Balances  []decimal.Decimal // closing balance per period of Result.Periods
	Direct    decimal.Decimal   // sum of transactions recorded on the account
	Synthetic decimal.Decimal   // sum of counterpart effects received
	Final     decimal.Decimal
}

// ProfileSeries is the sum of the account series of one profile.
type ProfileSeries struct {
	Profile string
	Opening decimal.Decimal
	Totals  []decimal.Decimal
}

// Unresolved marks a transfer whose destination could not be determined.
// Only its direct effect was applied.
type Unresolved struct {
	Index       int
	Transaction domain.Transaction
	Reason      string
	Candidates  []string
}

// Synthetic is a counterpart effect applied to a destination account.
type Synthetic struct {
	Index       int
	Date        time.Time
	Source      string
	Destination string
	Amount      decimal.Decimal
}

// Skipped is a transaction left out of the reconciliation.
type Skipped struct {
	Index  int
	Reason string
}

// Result is the outcome of Reconcile. Indices refer to Input.Transactions.
type Result struct {
	Owner           string
	Periods         []domain.Period
	Accounts        []AccountSeries
	Profiles        []ProfileSeries
	Summaries       []MonthlySummary
	Unresolved      []Unresolved
	Synthetic       []Synthetic
	Pairs           []transfer.Pair
	Skipped         []Skipped
	CreatedAccounts []string
	Registry        *domain.Registry
}

// Account returns the series of the named account.
func (r Result) Account(name string) (AccountSeries, bool) {
	key := domain.AccountKey(name)
	for _, a := range r.Accounts {
		if domain.AccountKey(a.Account) == key {
			return a, true
		}
	}
	return AccountSeries{}, false
}

// Profile returns the series of the named profile.
func (r Result) Profile(name string) (ProfileSeries, bool) {
	for _, p := range r.Profiles {
		if p.Profile == name {
			return p, true
		}
	}
	return ProfileSeries{}, false
}

type entry struct {
	index int
	tx    domain.Transaction
}

// Reconcile computes the balance series. It does not modify its input.
func Reconcile(in Input) Result {
	registry := domain.NewRegistry()
	if in.Accounts != nil {
		registry = in.Accounts.Clone()
	}
	res := Result{Owner: in.Owner, Registry: registry}

	var scope []entry
	for i, tx := range in.Transactions {
		switch {
		case in.Owner != "" && tx.Owner != in.Owner:
			res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: SkipOtherOwner})
		case tx.Planned && !in.IncludePlanned:
			res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: SkipPlanned})
		case domain.AccountKey(tx.Account) == "":
			res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: SkipNoAccount})
		case tx.Date.IsZero():
			res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: SkipNoDate})
		default:
			scope = append(scope, entry{index: i, tx: tx})
		}
	}

	for _, e := range scope {
		if registry.Add(domain.Account{Name: e.tx.Account, Owner: in.Owner, Profile: domain.DefaultProfile}) {
			res.CreatedAccounts = append(res.CreatedAccounts, e.tx.Account)
		}
	}

	// Periods follow each date's own location, so order by period first.
	sort.SliceStable(scope, func(i, j int) bool {
		pi, pj := scope[i].tx.Period(), scope[j].tx.Period()
		if pi != pj {
			return pi.Before(pj)
		}
		return scope[i].tx.Date.Before(scope[j].tx.Date)
	})

	res.Periods = periodsFor(in.From, in.To, scope)
	if len(res.Periods) > 0 {
		last := res.Periods[len(res.Periods)-1]
		kept := scope[:0:0]
		for _, e := range scope {
			if !last.Before(e.tx.Period()) {
				kept = append(kept, e)
			} else {
				res.Skipped = append(res.Skipped, Skipped{Index: e.index, Reason: SkipAfterRange})
			}
		}
		scope = kept
	}
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Index < res.Skipped[j].Index })

	detector := transfer.NewDetector(in.Transfer, registry)

	// Pass 1: resolve destinations and pair explicit counterparts.
	txs := make([]domain.Transaction, len(scope))
	for i, e := range scope {
		txs[i] = e.tx
	}
	resolutions := make(map[int]transfer.Resolution)
	var legs []transfer.Leg
	for i, tx := range txs {
		if !detector.IsTransferCategory(tx.Category) {
			continue
		}
		r := detector.Resolve(tx)
		resolutions[i] = r
		legs = append(legs, transfer.Leg{Index: i, Resolution: r})
	}
	paired := make(map[int]bool)
	for _, p := range detector.PairCounterparts(txs, legs) {
		paired[p.Leg], paired[p.Counterpart] = true, true
		res.Pairs = append(res.Pairs, transfer.Pair{Leg: scope[p.Leg].index, Counterpart: scope[p.Counterpart].index})
	}

	// Pass 2: apply effects chronologically, closing a period at each boundary.
	accounts := registry.Accounts()
	balance := make(map[string]decimal.Decimal, len(accounts))
	direct := make(map[string]decimal.Decimal, len(accounts))
	synthetic := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balance[domain.AccountKey(a.Name)] = a.OpeningBalance
	}
	closing := make([]map[string]decimal.Decimal, len(res.Periods))

	apply := func(i int) {
		tx := txs[i]
		src := domain.AccountKey(tx.Account)
		balance[src] = balance[src].Add(tx.Amount)
		direct[src] = direct[src].Add(tx.Amount)

		r, isLeg := resolutions[i]
		if !isLeg || paired[i] {
			return
		}
		if !r.Resolved {
			res.Unresolved = append(res.Unresolved, Unresolved{
				Index:       scope[i].index,
				Transaction: tx,
				Reason:      r.Reason,
				Candidates:  r.Candidates,
			})
			return
		}
		dest := domain.AccountKey(r.Destination)
		effect := tx.Amount.Neg()
		balance[dest] = balance[dest].Add(effect)
		synthetic[dest] = synthetic[dest].Add(effect)
		res.Synthetic = append(res.Synthetic, Synthetic{
			Index:       scope[i].index,
			Date:        tx.Date,
			Source:      tx.Account,
			Destination: r.Destination,
			Amount:      effect,
		})
	}

	next := 0
	for pi, p := range res.Periods {
		for next < len(txs) && !p.Before(txs[next].Period()) {
			apply(next)
			next++
		}
		snapshot := make(map[string]decimal.Decimal, len(balance))
		for k, v := range balance {
			snapshot[k] = v
		}
		closing[pi] = snapshot
	}
	for ; next < len(txs); next++ {
		apply(next)
	}

	profileIndex := make(map[string]int)
	for _, a := range accounts {
		key := domain.AccountKey(a.Name)
		series := AccountSeries{
			Account:   a.Name,
			Profile:   a.Profile,
			Opening:   a.OpeningBalance,
			Balances:  make([]decimal.Decimal, len(res.Periods)),
			Direct:    direct[key],
			Synthetic: synthetic[key],
			Final:     balance[key],
		}
		for pi := range res.Periods {
			series.Balances[pi] = closing[pi][key]
		}
		res.Accounts = append(res.Accounts, series)

		idx, ok := profileIndex[a.Profile]
		if !ok {
			idx = len(res.Profiles)
			profileIndex[a.Profile] = idx
			res.Profiles = append(res.Profiles, ProfileSeries{
				Profile: a.Profile,
				Totals:  make([]decimal.Decimal, len(res.Periods)),
			})
		}
		ps := &res.Profiles[idx]
		ps.Opening = ps.Opening.Add(a.OpeningBalance)
		for pi := range res.Periods {
			ps.Totals[pi] = ps.Totals[pi].Add(series.Balances[pi])
		}
	}

	res.Summaries = summarize(res, txs, detector)
	return res
}

func periodsFor(from, to domain.Period, scope []entry) []domain.Period {
	var zero domain.Period
	if from == zero || to == zero {
		if len(scope) == 0 {
			if from != zero {
				return []domain.Period{from}
			}
			if to != zero {
				return []domain.Period{to}
			}
			return nil
		}
		// scope is sorted by period.
		if from == zero {
			from = scope[0].tx.Period()
		}
		if to == zero {
			to = scope[len(scope)-1].tx.Period()
		}
	}
	return domain.PeriodsBetween(from, to)
}
