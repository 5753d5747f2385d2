package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

// ListAccountsWithClient returns the accounts of owner and the shared
// accounts (empty owner) using the provided BigQuery client.
func ListAccountsWithClient(ctx context.Context, client *bigquery.Client, dataset, owner string) ([]domain.Account, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			owner,
			account_name,
			profile,
			opening_balance,
			savings_target,
			created_ts,
			updated_ts
		FROM %s
		WHERE owner = @owner OR owner = ''
		ORDER BY created_ts, account_name
	`, tableRef(client, dataset, accountsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccountsWithClient: reading query: %w", err)
	}

	var accounts []domain.Account
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccountsWithClient: iterating: %w", err)
		}
		accounts = append(accounts, row.Account())
	}

	return accounts, nil
}

// UpsertAccountWithClient creates the account or updates the profile and
// amounts of the existing one. Accounts are matched on owner and the
// case-insensitive name.
func UpsertAccountWithClient(ctx context.Context, client *bigquery.Client, dataset string, a domain.Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("UpsertAccountWithClient: account name cannot be empty")
	}
	row := NewAccountRow(a)

	q := client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT
			@owner AS owner,
			@account_name AS account_name,
			@profile AS profile,
			@opening_balance AS opening_balance,
			@savings_target AS savings_target
		) s
		ON t.owner = s.owner AND UPPER(TRIM(t.account_name)) = UPPER(TRIM(s.account_name))
		WHEN MATCHED THEN UPDATE SET
			profile = s.profile,
			opening_balance = s.opening_balance,
			savings_target = s.savings_target,
			updated_ts = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN INSERT (
			owner, account_name, profile, opening_balance, savings_target, created_ts
		) VALUES (
			s.owner, s.account_name, s.profile, s.opening_balance, s.savings_target, CURRENT_TIMESTAMP()
		)
	`, tableRef(client, dataset, accountsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: row.Owner},
		{Name: "account_name", Value: strings.TrimSpace(row.AccountName)},
		{Name: "profile", Value: row.Profile},
		{Name: "opening_balance", Value: row.OpeningBalance},
		{Name: "savings_target", Value: row.SavingsTarget},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertAccountWithClient: %w", err)
	}
	return nil
}
