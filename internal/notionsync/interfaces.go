package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is the subset of the Notion API the publisher needs. Pages
// are addressed by the plain text of their "Key" title property.
type NotionService interface {
	// CreatePage adds a page to a database.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage replaces the given properties of a page.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryPages returns one page of results of the database rows whose key
	// starts with keyPrefix, starting at cursor (empty for the first page).
	QueryPages(ctx context.Context, databaseID, keyPrefix string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)

	// ArchivePage removes a page from its database.
	ArchivePage(ctx context.Context, pageID string) error
}
