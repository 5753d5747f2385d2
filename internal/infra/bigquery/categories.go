package bigquery

import "cloud.google.com/go/bigquery"

type CategoryRow struct {
	Owner string `bigquery:"owner"` // REQUIRED, empty for categories shared by every owner
	Name  string `bigquery:"name"`  // REQUIRED

	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	IsActive    bigquery.NullBool   `bigquery:"is_active"`   // NULLABLE

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"` // NULLABLE (defaults to CURRENT_TIMESTAMP())
	RetiredTS bigquery.NullTimestamp `bigquery:"retired_ts"` // NULLABLE
}
