package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListCategoriesWithClient returns the names of the active categories of
// owner and the shared ones, ordered by name.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client, dataset, owner string) ([]string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  owner,
		  name,
		  is_active
		FROM %s
		WHERE (owner = @owner OR owner = '')
		  AND IFNULL(is_active, TRUE)
		ORDER BY name
	`, tableRef(client, dataset, categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var names []string
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		names = append(names, r.Name)
	}

	return names, nil
}
