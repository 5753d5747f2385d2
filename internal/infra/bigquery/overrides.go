package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

type OverrideRow struct {
	Owner           string    `bigquery:"owner"`            // REQUIRED
	NormalizedLabel string    `bigquery:"normalized_label"` // REQUIRED
	Category        string    `bigquery:"category"`         // REQUIRED
	Version         int64     `bigquery:"version"`          // REQUIRED
	LearnedTS       time.Time `bigquery:"learned_ts"`       // REQUIRED
}

// Override converts the row back to the domain type.
func (r OverrideRow) Override() domain.Override {
	return domain.Override{
		Owner:           r.Owner,
		NormalizedLabel: r.NormalizedLabel,
		Category:        r.Category,
		Version:         r.Version,
		LearnedAt:       r.LearnedTS.UTC(),
	}
}

// ListOverridesWithClient returns the learned overrides of owner in the
// order they were learned.
func ListOverridesWithClient(ctx context.Context, client *bigquery.Client, dataset, owner string) ([]domain.Override, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			owner,
			normalized_label,
			category,
			version,
			learned_ts
		FROM %s
		WHERE owner = @owner
		ORDER BY version
	`, tableRef(client, dataset, overridesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListOverrides: query read: %w", err)
	}

	var out []domain.Override
	for {
		var r OverrideRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListOverrides: iter next: %w", err)
		}
		out = append(out, r.Override())
	}

	return out, nil
}

// SaveOverrideWithClient stores an override, replacing the category of an
// existing (owner, normalized label) entry.
func SaveOverrideWithClient(ctx context.Context, client *bigquery.Client, dataset string, o domain.Override) error {
	if o.Owner == "" || o.NormalizedLabel == "" {
		return fmt.Errorf("SaveOverride: owner and normalized label are required")
	}
	learned := o.LearnedAt
	if learned.IsZero() {
		learned = time.Now().UTC()
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT
			@owner AS owner,
			@normalized_label AS normalized_label,
			@category AS category,
			@version AS version,
			@learned_ts AS learned_ts
		) s
		ON t.owner = s.owner AND t.normalized_label = s.normalized_label
		WHEN MATCHED THEN UPDATE SET
			category = s.category,
			version = s.version,
			learned_ts = s.learned_ts
		WHEN NOT MATCHED THEN INSERT (owner, normalized_label, category, version, learned_ts)
		VALUES (s.owner, s.normalized_label, s.category, s.version, s.learned_ts)
	`, tableRef(client, dataset, overridesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: o.Owner},
		{Name: "normalized_label", Value: o.NormalizedLabel},
		{Name: "category", Value: o.Category},
		{Name: "version", Value: o.Version},
		{Name: "learned_ts", Value: learned},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveOverride: %w", err)
	}
	return nil
}
