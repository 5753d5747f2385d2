package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// pageSize is the largest page the Notion API returns.
const pageSize = 100

// NotionClient implements NotionService with the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a client for an integration token.
func NewNotionClient(token string) (*NotionClient, error) {
	if token == "" {
		return nil, fmt.Errorf("NewNotionClient: %w", ErrNoToken)
	}
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}, nil
}

func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	return page, nil
}

func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %s: %w", pageID, err)
	}
	return page, nil
}

// QueryPages filters on the title with starts_with, so a sync only reads the
// pages of its own owner or group.
func (n *NotionClient) QueryPages(ctx context.Context, databaseID, keyPrefix string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: pageSize, StartCursor: cursor}
	if keyPrefix != "" {
		req.Filter = &notionapi.PropertyFilter{
			Property: propKey,
			RichText: &notionapi.TextFilterCondition{StartsWith: keyPrefix},
		}
	}
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryPages: %s: %w", databaseID, err)
	}
	return resp, nil
}

// ArchivePage archives a page. Notion keeps it in the trash.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	if _, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("ArchivePage: %s: %w", pageID, err)
	}
	return nil
}

var _ NotionService = (*NotionClient)(nil)
