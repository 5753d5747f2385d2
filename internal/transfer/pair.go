package transfer

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/money"
)

// Leg is a transfer transaction whose destination has been looked up.
type Leg struct {
	Index      int // position in the transaction slice
	Resolution Resolution
}

// Pair links a transfer leg with the explicit transaction that records the
// other side of the same movement.
type Pair struct {
	Leg         int
	Counterpart int
}

// PairCounterparts finds, for every resolved leg, an unused transaction on
// the destination account carrying the opposite amount within the pairing
// window. Legs are visited in chronological order and each transaction is
// used at most once. A counterpart that is itself a resolved leg must point
// back at the leg's account.
func (d *Detector) PairCounterparts(txs []domain.Transaction, legs []Leg) []Pair {
	window := time.Duration(d.cfg.WindowDays) * 24 * time.Hour
	if window < 0 {
		window = 0
	}

	legByIndex := make(map[int]Resolution, len(legs))
	for _, l := range legs {
		legByIndex[l.Index] = l.Resolution
	}

	ordered := make([]Leg, len(legs))
	copy(ordered, legs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return txs[ordered[i].Index].Date.Before(txs[ordered[j].Index].Date)
	})

	used := make(map[int]bool)
	var pairs []Pair
	for _, leg := range ordered {
		if !leg.Resolution.Resolved || used[leg.Index] {
			continue
		}
		src := txs[leg.Index]
		if money.IsZero(src.Amount) {
			continue
		}
		dest := domain.AccountKey(leg.Resolution.Destination)
		want := src.Amount.Neg()

		best := -1
		var bestGap time.Duration
		for j, cand := range txs {
			if j == leg.Index || used[j] || domain.AccountKey(cand.Account) != dest {
				continue
			}
			if !money.Within(cand.Amount, want) {
				continue
			}
			gap := cand.Date.Sub(src.Date)
			if gap < 0 {
				gap = -gap
			}
			if gap > window {
				continue
			}
			if res, isLeg := legByIndex[j]; isLeg && res.Resolved &&
				domain.AccountKey(res.Destination) != domain.AccountKey(src.Account) {
				continue
			}
			if best < 0 || gap < bestGap {
				best, bestGap = j, gap
			}
		}
		if best >= 0 {
			used[leg.Index], used[best] = true, true
			pairs = append(pairs, Pair{Leg: leg.Index, Counterpart: best})
		}
	}
	return pairs
}
