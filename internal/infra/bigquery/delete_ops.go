package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// ReplaceTransactionsWithClient deletes every transaction of owner and
// inserts txs in one multi-statement transaction, so a failed insert keeps
// the previous rows.
func ReplaceTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset, owner string, txs []domain.Transaction) error {
	if owner == "" {
		return fmt.Errorf("ReplaceTransactions: owner cannot be empty")
	}

	q := client.Query(replaceTransactionsSQL(tableRef(client, dataset, transactionsTable), len(txs) > 0))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
	}
	if len(txs) > 0 {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{
			Name: "rows", Value: transactionRows(txs, time.Now().UTC()),
		})
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("ReplaceTransactions: %w", err)
	}
	return nil
}

func replaceTransactionsSQL(table string, insert bool) string {
	script := `
		BEGIN TRANSACTION;
		DELETE FROM ` + table + `
		WHERE owner = @owner;`
	if insert {
		script += insertTransactionsSQL(table) + `;`
	}
	return script + `
		COMMIT TRANSACTION;
	`
}
