package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/migrations"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrator applies the embedded BigQuery migrations to one dataset.
type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML configuration (or set LEDGER_CONFIG env)")
		projectID  = flag.String("project", "", "GCP project ID (default: storage.project_id or GOOGLE_CLOUD_PROJECT)")
		datasetID  = flag.String("dataset", "", "BigQuery dataset ID (default: storage.dataset)")
		appliedBy  = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun     = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	if *projectID == "" {
		*projectID = cfg.Storage.ProjectID
	}
	if *datasetID == "" {
		*datasetID = cfg.Storage.Dataset
	}
	// Validate required flags
	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx := context.Background()

	all, err := migrations.Load(migrations.BigQuery, migrations.BigQueryDir, map[string]string{
		"PROJECT_ID": *projectID,
		"DATASET_ID": *datasetID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(all)).Msg("Found migration files")

	// Create BigQuery client
	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{
		client:    client,
		projectID: *projectID,
		datasetID: *datasetID,
		appliedBy: *appliedBy,
		log:       log,
	}
	log.Info().Str("project", m.projectID).Str("dataset", m.datasetID).Msg("Connected to BigQuery")

	applied, err := m.applied(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	pending, drifted := migrations.Pending(all, checksums(applied))
	for _, d := range drifted {
		log.Warn().Str("migration", d.Label()).Msg("Applied migration was modified since it ran")
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
		return
	}
	if *dryRun {
		for _, p := range pending {
			fmt.Println(p.Label())
		}
		return
	}

	for _, p := range pending {
		log.Info().Str("migration", p.Label()).Msg("Applying migration")
		if err := m.run(ctx, p.SQL, nil); err != nil {
			log.Fatal().Err(err).Str("migration", p.Label()).Msg("Failed to execute migration")
		}
		if err := m.record(ctx, p); err != nil {
			log.Fatal().Err(err).Str("migration", p.Label()).Msg("Failed to record migration")
		}
	}
	log.Info().Int("applied", len(pending)).Msg("Successfully applied migrations")
}

func (m *migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

// applied retrieves the already applied migrations. A dataset without a
// schema_migrations table has none.
func (m *migrator) applied(ctx context.Context) ([]AppliedMigration, error) {
	query := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table() + `
		ORDER BY version ASC
	`)
	it, err := query.Read(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("applied: reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("applied: iterating results: %w", err)
		}

		am := AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}
		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}
		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}
		applied = append(applied, am)
	}
	return applied, nil
}

// record stores a successfully applied migration in schema_migrations.
func (m *migrator) record(ctx context.Context, mig migrations.Migration) error {
	sql := `
		INSERT INTO ` + m.table() + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`
	return m.run(ctx, sql, []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	})
}

// run executes a statement and waits for its job.
func (m *migrator) run(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := m.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("run: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("run: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("run: job error: %w", err)
	}
	return nil
}

// checksums maps applied versions to their recorded checksum.
func checksums(applied []AppliedMigration) map[int]string {
	out := make(map[int]string, len(applied))
	for _, a := range applied {
		out[a.Version] = a.Checksum
	}
	return out
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
