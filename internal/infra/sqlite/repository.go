package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateFormat = "2006-01-02"

func (r *Repository) ListTransactions(ctx context.Context, owner string) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, owner, account, transaction_date, raw_label, extra,
		       normalized_label, amount, category, planned
		FROM transactions
		WHERE owner = ?
		ORDER BY transaction_date, rowid
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx           domain.Transaction
			date, amount string
		)
		err := rows.Scan(&tx.ID, &tx.Owner, &tx.Account, &date, &tx.RawLabel, &tx.Extra,
			&tx.NormalizedLabel, &amount, &tx.Category, &tx.Planned)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scanning: %w", err)
		}
		if tx.Date, err = time.Parse(dateFormat, date); err != nil {
			return nil, fmt.Errorf("ListTransactions: transaction %s: %w", tx.ID, err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ListTransactions: transaction %s: %w", tx.ID, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// InsertTransactions inserts the batch in one database transaction. Rows
// without an ID get a new one.
func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.inTx(ctx, "InsertTransactions", func(tx *sql.Tx) error {
		return insertTransactions(ctx, tx, txs)
	})
}

// ReplaceTransactions swaps every row of owner for txs in one database
// transaction.
func (r *Repository) ReplaceTransactions(ctx context.Context, owner string, txs []domain.Transaction) error {
	if owner == "" {
		return fmt.Errorf("ReplaceTransactions: owner cannot be empty")
	}
	return r.inTx(ctx, "ReplaceTransactions", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE owner = ?`, owner); err != nil {
			return fmt.Errorf("deleting: %w", err)
		}
		return insertTransactions(ctx, tx, txs)
	})
}

func insertTransactions(ctx context.Context, tx *sql.Tx, txs []domain.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (transaction_id, owner, account, transaction_date, raw_label,
		                          extra, normalized_label, amount, category, planned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range txs {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, t.Owner, t.Account, t.Date.Format(dateFormat), t.RawLabel,
			t.Extra, t.NormalizedLabel, t.Amount.String(), t.Category, t.Planned); err != nil {
			return fmt.Errorf("inserting %s: %w", id, err)
		}
	}
	return nil
}

func (r *Repository) UpdateCategories(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.inTx(ctx, "UpdateCategories", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE transactions
			SET category = ?, normalized_label = ?, updated_at = CURRENT_TIMESTAMP
			WHERE transaction_id = ?
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range txs {
			if t.ID == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, t.Category, t.NormalizedLabel, t.ID); err != nil {
				return fmt.Errorf("updating %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListAccounts returns the accounts of owner and the shared ones.
func (r *Repository) ListAccounts(ctx context.Context, owner string) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner, account_name, profile, opening_balance, savings_target
		FROM accounts
		WHERE owner = ? OR owner = ''
		ORDER BY rowid
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			a               domain.Account
			opening, target string
		)
		if err := rows.Scan(&a.Owner, &a.Name, &a.Profile, &opening, &target); err != nil {
			return nil, fmt.Errorf("ListAccounts: scanning: %w", err)
		}
		if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
			return nil, fmt.Errorf("ListAccounts: %s: %w", a.Name, err)
		}
		if a.SavingsTarget, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("ListAccounts: %s: %w", a.Name, err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// UpsertAccount creates the account or updates the existing one with the
// same owner and case-insensitive name.
func (r *Repository) UpsertAccount(ctx context.Context, a domain.Account) error {
	key := domain.AccountKey(a.Name)
	if key == "" {
		return fmt.Errorf("UpsertAccount: account name cannot be empty")
	}
	profile := a.Profile
	if profile == "" {
		profile = domain.DefaultProfile
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (owner, account_name, account_key, profile, opening_balance, savings_target)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, account_key) DO UPDATE SET
			profile = excluded.profile,
			opening_balance = excluded.opening_balance,
			savings_target = excluded.savings_target,
			updated_at = CURRENT_TIMESTAMP
	`, a.Owner, strings.TrimSpace(a.Name), key, profile, a.OpeningBalance.String(), a.SavingsTarget.String())
	if err != nil {
		return fmt.Errorf("UpsertAccount: %w", err)
	}
	return nil
}

func (r *Repository) ListOverrides(ctx context.Context, owner string) ([]domain.Override, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner, normalized_label, category, version, learned_at
		FROM category_overrides
		WHERE owner = ?
		ORDER BY version, rowid
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ListOverrides: %w", err)
	}
	defer rows.Close()

	var out []domain.Override
	for rows.Next() {
		var o domain.Override
		if err := rows.Scan(&o.Owner, &o.NormalizedLabel, &o.Category, &o.Version, &o.LearnedAt); err != nil {
			return nil, fmt.Errorf("ListOverrides: scanning: %w", err)
		}
		o.LearnedAt = o.LearnedAt.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListOverrides: %w", err)
	}
	return out, nil
}

// SaveOverride stores an override, replacing the category of an existing
// (owner, normalized label) entry.
func (r *Repository) SaveOverride(ctx context.Context, o domain.Override) error {
	if o.Owner == "" || o.NormalizedLabel == "" {
		return fmt.Errorf("SaveOverride: owner and normalized label are required")
	}
	learned := o.LearnedAt
	if learned.IsZero() {
		learned = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_overrides (owner, normalized_label, category, version, learned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner, normalized_label) DO UPDATE SET
			category = excluded.category,
			version = excluded.version,
			learned_at = excluded.learned_at
	`, o.Owner, o.NormalizedLabel, o.Category, o.Version, learned.UTC())
	if err != nil {
		return fmt.Errorf("SaveOverride: %w", err)
	}
	return nil
}

// ListExpenses returns the expenses of a group with their shares.
func (r *Repository) ListExpenses(ctx context.Context, groupID string) ([]domain.SharedExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.expense_id, e.group_id, e.label, e.payer, e.amount, e.expense_date,
		       s.participant, s.amount
		FROM shared_expenses e
		LEFT JOIN expense_shares s ON s.expense_id = e.expense_id
		WHERE e.group_id = ?
		ORDER BY e.expense_date, e.rowid, s.participant
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: %w", err)
	}
	defer rows.Close()

	var out []domain.SharedExpense
	index := make(map[string]int)
	for rows.Next() {
		var (
			e                  domain.SharedExpense
			amount, date       string
			participant, share sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Label, &e.Payer, &amount, &date, &participant, &share); err != nil {
			return nil, fmt.Errorf("ListExpenses: scanning: %w", err)
		}

		i, ok := index[e.ID]
		if !ok {
			if e.Amount, err = decimal.NewFromString(amount); err != nil {
				return nil, fmt.Errorf("ListExpenses: expense %s: %w", e.ID, err)
			}
			if date != "" {
				if e.Date, err = time.Parse(dateFormat, date); err != nil {
					return nil, fmt.Errorf("ListExpenses: expense %s: %w", e.ID, err)
				}
			}
			e.Split = make(map[string]decimal.Decimal)
			i = len(out)
			index[e.ID] = i
			out = append(out, e)
		}
		if participant.Valid {
			v, err := decimal.NewFromString(share.String)
			if err != nil {
				return nil, fmt.Errorf("ListExpenses: expense %s share %s: %w", e.ID, participant.String, err)
			}
			out[i].Split[participant.String] = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListExpenses: %w", err)
	}
	return out, nil
}

func (r *Repository) InsertExpenses(ctx context.Context, expenses []domain.SharedExpense) error {
	if len(expenses) == 0 {
		return nil
	}
	return r.inTx(ctx, "InsertExpenses", func(tx *sql.Tx) error {
		for _, e := range expenses {
			id := e.ID
			if id == "" {
				id = uuid.NewString()
			}
			date := ""
			if !e.Date.IsZero() {
				date = e.Date.Format(dateFormat)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO shared_expenses (expense_id, group_id, label, payer, amount, expense_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, e.GroupID, e.Label, e.Payer, e.Amount.String(), date); err != nil {
				return fmt.Errorf("inserting expense %s: %w", id, err)
			}

			names := make([]string, 0, len(e.Split))
			for name := range e.Split {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO expense_shares (expense_id, participant, amount) VALUES (?, ?, ?)`,
					id, name, e.Split[name].String()); err != nil {
					return fmt.Errorf("inserting share %s of %s: %w", name, id, err)
				}
			}
		}
		return nil
	})
}

// ListCategories returns the active category names of owner and the shared
// ones, ordered by name.
func (r *Repository) ListCategories(ctx context.Context, owner string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT name FROM categories
		WHERE (owner = ? OR owner = '') AND is_active = 1
		ORDER BY name
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ListCategories: scanning: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return names, nil
}

// AddCategory defines a category for owner, or for everyone when owner is
// empty. Defining an existing category reactivates it.
func (r *Repository) AddCategory(ctx context.Context, owner, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("AddCategory: name cannot be empty")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (owner, name, is_active) VALUES (?, ?, 1)
		ON CONFLICT (owner, name) DO UPDATE SET is_active = 1
	`, owner, name)
	if err != nil {
		return fmt.Errorf("AddCategory: %w", err)
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
