package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
)

const (
	transactionsTable = "transactions"
	accountsTable     = "accounts"
	overridesTable    = "category_overrides"
	expensesTable     = "shared_expenses"
	categoriesTable   = "categories"
	dateFormat        = "2006-01-02"
)

var _ pipeline.Repository = (*Repository)(nil)

// Repository is the BigQuery implementation of pipeline.Repository. It holds
// a shared BigQuery client to avoid creating a new connection for each
// operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a repository on the given project and dataset.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// NewRepositoryWithClient wraps an existing client. Close closes it.
func NewRepositoryWithClient(client *bigquery.Client, dataset string) *Repository {
	return &Repository{client: client, dataset: dataset}
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, owner string) ([]domain.Transaction, error) {
	return ListTransactionsWithClient(ctx, r.client, r.dataset, owner)
}

func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, txs)
}

func (r *Repository) UpdateCategories(ctx context.Context, txs []domain.Transaction) error {
	return UpdateCategoriesWithClient(ctx, r.client, r.dataset, txs)
}

func (r *Repository) ReplaceTransactions(ctx context.Context, owner string, txs []domain.Transaction) error {
	return ReplaceTransactionsWithClient(ctx, r.client, r.dataset, owner, txs)
}

func (r *Repository) ListAccounts(ctx context.Context, owner string) ([]domain.Account, error) {
	return ListAccountsWithClient(ctx, r.client, r.dataset, owner)
}

func (r *Repository) UpsertAccount(ctx context.Context, a domain.Account) error {
	return UpsertAccountWithClient(ctx, r.client, r.dataset, a)
}

func (r *Repository) ListOverrides(ctx context.Context, owner string) ([]domain.Override, error) {
	return ListOverridesWithClient(ctx, r.client, r.dataset, owner)
}

func (r *Repository) SaveOverride(ctx context.Context, o domain.Override) error {
	return SaveOverrideWithClient(ctx, r.client, r.dataset, o)
}

func (r *Repository) ListExpenses(ctx context.Context, groupID string) ([]domain.SharedExpense, error) {
	return ListExpensesWithClient(ctx, r.client, r.dataset, groupID)
}

func (r *Repository) InsertExpenses(ctx context.Context, expenses []domain.SharedExpense) error {
	return InsertExpensesWithClient(ctx, r.client, r.dataset, expenses)
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]string, error) {
	return ListCategoriesWithClient(ctx, r.client, r.dataset, owner)
}

// tableRef returns the fully qualified, quoted name of table.
func tableRef(client *bigquery.Client, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", client.Project(), dataset, table)
}

// runDML runs a statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
