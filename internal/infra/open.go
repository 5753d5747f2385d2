// Package infra selects the storage backend named in the configuration.
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
)

// ErrNoProject is returned when the BigQuery backend has no project ID.
var ErrNoProject = errors.New("bigquery backend needs a project id")

// OpenRepository opens the configured backend. The caller closes it.
func OpenRepository(ctx context.Context, cfg *config.Config) (pipeline.Repository, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil
	case config.BackendBigQuery:
		if cfg.Storage.ProjectID == "" {
			return nil, fmt.Errorf("OpenRepository: %w", ErrNoProject)
		}
		repo, err := bigquery.NewRepository(ctx, cfg.Storage.ProjectID, cfg.Storage.Dataset)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("OpenRepository: unknown backend %q: %w", cfg.Storage.Backend, config.ErrInvalid)
	}
}
