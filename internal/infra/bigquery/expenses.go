package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

type ExpenseRow struct {
	ExpenseID   string              `bigquery:"expense_id"`   // REQUIRED
	GroupID     string              `bigquery:"group_id"`     // REQUIRED
	Label       bigquery.NullString `bigquery:"label"`        // NULLABLE
	Payer       string              `bigquery:"payer"`        // REQUIRED
	Amount      *big.Rat            `bigquery:"amount"`       // REQUIRED NUMERIC
	ExpenseDate bigquery.NullDate   `bigquery:"expense_date"` // NULLABLE
	Shares      []ShareRow          `bigquery:"shares"`       // REPEATED RECORD
	CreatedTS   time.Time           `bigquery:"created_ts"`   // REQUIRED
}

type ShareRow struct {
	Participant string   `bigquery:"participant"`
	Amount      *big.Rat `bigquery:"amount"`
}

// NewExpenseRow converts a shared expense for storage. Shares are sorted by
// participant so that stored rows are stable.
func NewExpenseRow(e domain.SharedExpense, now time.Time) ExpenseRow {
	row := ExpenseRow{
		ExpenseID: e.ID,
		GroupID:   e.GroupID,
		Label:     nullString(e.Label),
		Payer:     e.Payer,
		Amount:    e.Amount.Rat(),
		CreatedTS: now,
	}
	if !e.Date.IsZero() {
		row.ExpenseDate = bigquery.NullDate{Date: civil.DateOf(e.Date), Valid: true}
	}
	names := make([]string, 0, len(e.Split))
	for name := range e.Split {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row.Shares = append(row.Shares, ShareRow{Participant: name, Amount: e.Split[name].Rat()})
	}
	return row
}

// Expense converts the row back to the domain type.
func (r ExpenseRow) Expense() domain.SharedExpense {
	e := domain.SharedExpense{
		ID:      r.ExpenseID,
		GroupID: r.GroupID,
		Label:   r.Label.StringVal,
		Payer:   r.Payer,
		Amount:  ratToDecimal(r.Amount),
		Split:   make(map[string]decimal.Decimal, len(r.Shares)),
	}
	if r.ExpenseDate.Valid {
		e.Date = r.ExpenseDate.Date.In(time.UTC)
	}
	for _, s := range r.Shares {
		e.Split[s.Participant] = ratToDecimal(s.Amount)
	}
	return e
}

// ListExpensesWithClient returns the expenses of a group in date order.
func ListExpensesWithClient(ctx context.Context, client *bigquery.Client, dataset, groupID string) ([]domain.SharedExpense, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			expense_id,
			group_id,
			label,
			payer,
			amount,
			expense_date,
			shares,
			created_ts
		FROM %s
		WHERE group_id = @group_id
		ORDER BY expense_date, created_ts, expense_id
	`, tableRef(client, dataset, expensesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "group_id", Value: groupID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query read: %w", err)
	}

	var out []domain.SharedExpense
	for {
		var r ExpenseRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExpenses: iter next: %w", err)
		}
		out = append(out, r.Expense())
	}

	return out, nil
}

// InsertExpensesWithClient inserts a batch of shared expenses.
func InsertExpensesWithClient(ctx context.Context, client *bigquery.Client, dataset string, expenses []domain.SharedExpense) error {
	if len(expenses) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]ExpenseRow, len(expenses))
	for i, e := range expenses {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		rows[i] = NewExpenseRow(e, now)
	}

	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			expense_id, group_id, label, payer, amount, expense_date, shares, created_ts
		)
		SELECT
			r.expense_id, r.group_id, r.label, r.payer, r.amount, r.expense_date, r.shares, r.created_ts
		FROM UNNEST(@rows) AS r
	`, tableRef(client, dataset, expensesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertExpenses: inserting %d rows: %w", len(rows), err)
	}
	return nil
}
