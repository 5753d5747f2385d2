package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharedExpense is a group purchase paid by one participant and split between
// several. The split must sum to Amount within money.Epsilon.
type SharedExpense struct {
	ID      string
	GroupID string
	Label   string
	Payer   string
	Amount  decimal.Decimal
	Split   map[string]decimal.Decimal
	Date    time.Time
}

// DebtEdge records that Debtor owes Creditor Amount after netting.
type DebtEdge struct {
	Debtor   string
	Creditor string
	Amount   decimal.Decimal
}
