package pipeline

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// TransactionRepository stores ledger rows.
type TransactionRepository interface {
	// ListTransactions returns the owner's rows ordered by date.
	ListTransactions(ctx context.Context, owner string) ([]domain.Transaction, error)

	// InsertTransactions appends rows. Rows without an ID get one.
	InsertTransactions(ctx context.Context, txs []domain.Transaction) error

	// UpdateCategories writes back the normalized label and category of each row by ID.
	UpdateCategories(ctx context.Context, txs []domain.Transaction) error

	// ReplaceTransactions atomically swaps every row of the owner for txs.
	ReplaceTransactions(ctx context.Context, owner string, txs []domain.Transaction) error
}

// AccountRepository stores explicitly created accounts.
type AccountRepository interface {
	ListAccounts(ctx context.Context, owner string) ([]domain.Account, error)
	UpsertAccount(ctx context.Context, account domain.Account) error
}

// OverrideRepository stores the learned category memory.
type OverrideRepository interface {
	ListOverrides(ctx context.Context, owner string) ([]domain.Override, error)
	SaveOverride(ctx context.Context, o domain.Override) error
}

// ExpenseRepository stores shared group expenses.
type ExpenseRepository interface {
	ListExpenses(ctx context.Context, groupID string) ([]domain.SharedExpense, error)
	InsertExpenses(ctx context.Context, expenses []domain.SharedExpense) error
}

// CategoryRepository lists user-defined categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context, owner string) ([]string, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	TransactionRepository
	AccountRepository
	OverrideRepository
	ExpenseRepository
	CategoryRepository
	Close() error
}

// StorageService fetches snapshots from and uploads reports to object storage.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error
}
