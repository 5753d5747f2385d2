package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/transfer"
)

// CategoryValidator checks transaction categories against the known set.
// Transfer categories ("Transfer to X", configured prefixes) are always valid.
type CategoryValidator struct {
	categories map[string]bool // normalized names
	detector   *transfer.Detector
}

// NewCategoryValidator builds a validator from the configured categories and
// the user categories stored for owner. repo may be nil.
func NewCategoryValidator(ctx context.Context, repo CategoryRepository, owner string, known []string, detector *transfer.Detector) (*CategoryValidator, error) {
	v := &CategoryValidator{
		categories: make(map[string]bool),
		detector:   detector,
	}
	for _, c := range known {
		v.categories[normalizeCategory(c)] = true
	}
	if repo != nil {
		stored, err := repo.ListCategories(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("NewCategoryValidator: list categories: %w", err)
		}
		for _, c := range stored {
			v.categories[normalizeCategory(c)] = true
		}
	}
	return v, nil
}

// ValidateCategory returns an error when category is neither known nor a
// transfer category.
func (v *CategoryValidator) ValidateCategory(category string) error {
	if v.categories[normalizeCategory(category)] {
		return nil
	}
	if v.detector != nil && v.detector.IsTransferCategory(category) {
		return nil
	}
	if transfer.IsTransferCategory(category) {
		return nil
	}
	return fmt.Errorf("invalid category: %q (normalized: %q)", category, normalizeCategory(category))
}

// Validate reports one warning per distinct unknown category on owner rows.
func (v *CategoryValidator) Validate(owner string, txs []domain.Transaction) []Warning {
	var warnings []Warning
	seen := make(map[string]bool)
	for i, tx := range txs {
		if tx.Owner != owner || tx.Category == "" {
			continue
		}
		key := normalizeCategory(tx.Category)
		if seen[key] {
			continue
		}
		if err := v.ValidateCategory(tx.Category); err != nil {
			seen[key] = true
			warnings = append(warnings, Warning{Row: i + 1, Field: "category", Value: tx.Category, Message: "unknown category"})
		}
	}
	return warnings
}

// normalizeCategory normalizes a category name for comparison.
// Converts to uppercase and trims whitespace for case-insensitive comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
