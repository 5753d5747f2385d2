package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the number of decimal digits of a BigQuery NUMERIC.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	Owner         string `bigquery:"owner"`          // REQUIRED
	Account       string `bigquery:"account"`        // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	RawLabel        string              `bigquery:"raw_label"`        // REQUIRED
	Extra           bigquery.NullString `bigquery:"extra"`            // NULLABLE
	NormalizedLabel bigquery.NullString `bigquery:"normalized_label"` // NULLABLE

	Amount   *big.Rat            `bigquery:"amount"`   // REQUIRED NUMERIC
	Category bigquery.NullString `bigquery:"category"` // NULLABLE
	Planned  bool                `bigquery:"planned"`  // REQUIRED

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// categoryUpdate is one element of the @updates array of UpdateCategories.
type categoryUpdate struct {
	TransactionID   string `bigquery:"transaction_id"`
	Category        string `bigquery:"category"`
	NormalizedLabel string `bigquery:"normalized_label"`
}

// NewTransactionRow converts a transaction for storage.
func NewTransactionRow(tx domain.Transaction, now time.Time) TransactionRow {
	return TransactionRow{
		TransactionID:   tx.ID,
		Owner:           tx.Owner,
		Account:         tx.Account,
		TransactionDate: civil.DateOf(tx.Date),
		RawLabel:        tx.RawLabel,
		Extra:           nullString(tx.Extra),
		NormalizedLabel: nullString(tx.NormalizedLabel),
		Amount:          tx.Amount.Rat(),
		Category:        nullString(tx.Category),
		Planned:         tx.Planned,
		CreatedTS:       now,
	}
}

// Transaction converts the row back to the domain type.
func (r TransactionRow) Transaction() domain.Transaction {
	return domain.Transaction{
		ID:              r.TransactionID,
		Date:            r.TransactionDate.In(time.UTC),
		RawLabel:        r.RawLabel,
		Extra:           r.Extra.StringVal,
		NormalizedLabel: r.NormalizedLabel.StringVal,
		Amount:          ratToDecimal(r.Amount),
		Category:        r.Category.StringVal,
		Account:         r.Account,
		Owner:           r.Owner,
		Planned:         r.Planned,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}
