package bigquery

import (
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

type AccountRow struct {
	Owner       string `bigquery:"owner"`        // REQUIRED, empty for accounts shared by every owner
	AccountName string `bigquery:"account_name"` // REQUIRED
	Profile     string `bigquery:"profile"`      // REQUIRED

	OpeningBalance *big.Rat `bigquery:"opening_balance"` // NUMERIC, NULLABLE
	SavingsTarget  *big.Rat `bigquery:"savings_target"`  // NUMERIC, NULLABLE

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"` // TIMESTAMP, NULLABLE (default CURRENT_TIMESTAMP())
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // TIMESTAMP, NULLABLE
}

// NewAccountRow converts an account for storage.
func NewAccountRow(a domain.Account) AccountRow {
	profile := a.Profile
	if profile == "" {
		profile = domain.DefaultProfile
	}
	return AccountRow{
		Owner:          a.Owner,
		AccountName:    a.Name,
		Profile:        profile,
		OpeningBalance: a.OpeningBalance.Rat(),
		SavingsTarget:  a.SavingsTarget.Rat(),
	}
}

// Account converts the row back to the domain type.
func (r AccountRow) Account() domain.Account {
	return domain.Account{
		Name:           r.AccountName,
		Owner:          r.Owner,
		Profile:        r.Profile,
		OpeningBalance: ratToDecimal(r.OpeningBalance),
		SavingsTarget:  ratToDecimal(r.SavingsTarget),
	}
}
