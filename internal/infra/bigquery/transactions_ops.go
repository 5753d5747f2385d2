package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// ListTransactionsWithClient returns the owner's transactions in date order
// using the provided BigQuery client.
func ListTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset, owner string) ([]domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			owner,
			account,
			transaction_date,
			raw_label,
			extra,
			normalized_label,
			amount,
			category,
			planned,
			created_ts,
			updated_ts
		FROM %s
		WHERE owner = @owner
		ORDER BY transaction_date, created_ts, transaction_id
	`, tableRef(client, dataset, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		txs = append(txs, r.Transaction())
	}

	return txs, nil
}

// InsertTransactionsWithClient inserts a batch of transactions. Rows are
// written with DML rather than the streaming inserter so that
// UpdateCategories can touch them right away.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	q := client.Query(insertTransactionsSQL(tableRef(client, dataset, transactionsTable)))
	rows := transactionRows(txs, time.Now().UTC())
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertTransactions: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// transactionRows converts txs to rows, giving an ID to rows without one.
func transactionRows(txs []domain.Transaction, now time.Time) []TransactionRow {
	rows := make([]TransactionRow, len(txs))
	for i, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		rows[i] = NewTransactionRow(tx, now)
	}
	return rows
}

func insertTransactionsSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			transaction_id, owner, account, transaction_date,
			raw_label, extra, normalized_label,
			amount, category, planned, created_ts
		)
		SELECT
			r.transaction_id, r.owner, r.account, r.transaction_date,
			r.raw_label, r.extra, r.normalized_label,
			r.amount, r.category, r.planned, r.created_ts
		FROM UNNEST(@rows) AS r
	`, table)
}

// UpdateCategoriesWithClient writes back the category and normalized label
// of the given transactions in a single statement.
func UpdateCategoriesWithClient(ctx context.Context, client *bigquery.Client, dataset string, txs []domain.Transaction) error {
	var updates []categoryUpdate
	for _, tx := range txs {
		if tx.ID == "" {
			continue
		}
		updates = append(updates, categoryUpdate{
			TransactionID:   tx.ID,
			Category:        tx.Category,
			NormalizedLabel: tx.NormalizedLabel,
		})
	}
	if len(updates) == 0 {
		return nil
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s t
		SET
			category = u.category,
			normalized_label = u.normalized_label,
			updated_ts = CURRENT_TIMESTAMP()
		FROM UNNEST(@updates) AS u
		WHERE t.transaction_id = u.transaction_id
	`, tableRef(client, dataset, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "updates", Value: updates},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateCategories: %w", err)
	}
	return nil
}
