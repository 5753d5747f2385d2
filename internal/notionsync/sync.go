package notionsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/dvloznov/finance-ledger/internal/settlement"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of rows to process in a single batch
	BatchSize = 100
)

var (
	// ErrNoToken is returned when no Notion integration token is configured.
	ErrNoToken = errors.New("notion token is required")
	// ErrNoDatabase is returned when a sync targets an unconfigured database.
	ErrNoDatabase = errors.New("notion database id is required")
)

// Stats counts what a sync did, or would do in dry-run mode.
type Stats struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// Publisher mirrors reconciliation results and group debts into Notion.
// Every page is keyed by its "Key" title, so repeated syncs update pages in
// place and archive the ones that no longer exist.
type Publisher struct {
	Service            NotionService
	BalancesDatabaseID string
	DebtsDatabaseID    string
	Currency           string
	DryRun             bool
	Now                func() time.Time
}

type page struct {
	key   string
	props notionapi.Properties
}

// SyncBalances publishes the closing balance of every account and period of
// one owner. Pages of the owner that are not part of res are archived.
func (p *Publisher) SyncBalances(ctx context.Context, res reconcile.Result) (Stats, error) {
	if p.BalancesDatabaseID == "" {
		return Stats{}, fmt.Errorf("SyncBalances: %w", ErrNoDatabase)
	}
	now := p.now()
	rows := BalanceRows(res)
	pages := make([]page, 0, len(rows))
	for _, row := range rows {
		pages = append(pages, page{key: row.Key(), props: BalanceToNotionProperties(row, p.Currency, now)})
	}

	stats, err := p.sync(ctx, p.BalancesDatabaseID, res.Owner+"/", pages)
	if err != nil {
		return stats, fmt.Errorf("SyncBalances: %w", err)
	}
	return stats, nil
}

// SyncDebts publishes the netted debts of one group. Edges that disappeared
// since the last sync (settled or netted away) are archived.
func (p *Publisher) SyncDebts(ctx context.Context, group string, res settlement.Result) (Stats, error) {
	if p.DebtsDatabaseID == "" {
		return Stats{}, fmt.Errorf("SyncDebts: %w", ErrNoDatabase)
	}
	now := p.now()
	pages := make([]page, 0, len(res.Edges))
	for _, e := range res.Edges {
		pages = append(pages, page{key: DebtKey(group, e), props: DebtToNotionProperties(group, e, p.Currency, now)})
	}

	stats, err := p.sync(ctx, p.DebtsDatabaseID, group+"/", pages)
	if err != nil {
		return stats, fmt.Errorf("SyncDebts: %w", err)
	}
	return stats, nil
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// sync upserts pages into databaseID and archives the existing pages whose
// key starts with scope but is not in pages. Single page failures are
// logged and counted; only query failures abort the sync.
func (p *Publisher) sync(ctx context.Context, databaseID, scope string, pages []page) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	log.Info().
		Str("database_id", databaseID).
		Str("scope", scope).
		Int("rows", len(pages)).
		Bool("dry_run", p.DryRun).
		Msg("Starting Notion sync")

	existing, err := queryAllNotionPages(ctx, p.Service, databaseID, scope)
	if err != nil {
		return stats, err
	}
	pageIDs := make(map[string]string, len(existing))
	for _, pg := range existing {
		if key := extractKey(pg); key != "" {
			pageIDs[key] = string(pg.ID)
		}
	}

	wanted := make(map[string]bool, len(pages))
	for i := 0; i < len(pages); i += BatchSize {
		end := i + BatchSize
		if end > len(pages) {
			end = len(pages)
		}
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, pg := range pages[i:end] {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			wanted[pg.key] = true
			pageID, found := pageIDs[pg.key]

			switch {
			case p.DryRun && found:
				log.Info().Str("key", pg.key).Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			case p.DryRun:
				log.Info().Str("key", pg.key).Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			case found:
				if _, err := p.Service.UpdatePage(ctx, pageID, pg.props); err != nil {
					log.Warn().Err(err).Str("key", pg.key).Str("page_id", pageID).Msg("Failed to update Notion page")
					stats.Failed++
					continue
				}
				stats.Updated++
			default:
				if _, err := p.Service.CreatePage(ctx, databaseID, pg.props); err != nil {
					log.Warn().Err(err).Str("key", pg.key).Msg("Failed to create Notion page")
					stats.Failed++
					continue
				}
				stats.Created++
			}
		}
	}

	stale := make([]string, 0, len(pageIDs))
	for key := range pageIDs {
		if strings.HasPrefix(key, scope) && !wanted[key] {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	for _, key := range stale {
		pageID := pageIDs[key]
		if p.DryRun {
			log.Info().Str("key", key).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := p.Service.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("key", key).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Notion sync completed")
	return stats, nil
}

// queryAllNotionPages returns every page of databaseID whose key starts
// with keyPrefix, following the pagination cursor.
func queryAllNotionPages(ctx context.Context, svc NotionService, databaseID, keyPrefix string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := svc.QueryPages(ctx, databaseID, keyPrefix, cursor)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
