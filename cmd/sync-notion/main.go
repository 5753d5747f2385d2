package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/infra"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/notionsync"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/dvloznov/finance-ledger/internal/settlement"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML configuration (or set LEDGER_CONFIG env)")
	owner := flag.String("owner", "", "Owner whose balances are published (default: config owner)")
	groups := flag.String("groups", "", "Comma-separated groups whose debts are published")
	fromStr := flag.String("from", "", "First month to publish, YYYY-MM")
	toStr := flag.String("to", "", "Last month to publish, YYYY-MM")
	notionToken := flag.String("notion-token", "", "Notion API token (or notion.token / NOTION_TOKEN)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.LogLevel)

	if *notionToken != "" {
		cfg.Notion.Token = *notionToken
	}
	if *owner == "" {
		*owner = cfg.Owner
	}
	groupIDs := splitList(*groups)
	if *owner == "" && len(groupIDs) == 0 {
		log.Fatal().Msg("Error: --owner or --groups is required")
	}

	var opts engine.Options
	if *fromStr != "" {
		if opts.From, err = domain.ParsePeriod(*fromStr); err != nil {
			log.Fatal().Err(err).Str("from", *fromStr).Msg("Error: invalid from format, expected YYYY-MM")
		}
	}
	if *toStr != "" {
		if opts.To, err = domain.ParsePeriod(*toStr); err != nil {
			log.Fatal().Err(err).Str("to", *toStr).Msg("Error: invalid to format, expected YYYY-MM")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("owner", *owner).
		Strs("groups", groupIDs).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	// Initialize Notion client
	notionClient, err := notionsync.NewNotionClient(cfg.Notion.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Notion client")
	}

	publisher := &notionsync.Publisher{
		Service:            notionClient,
		BalancesDatabaseID: cfg.Notion.BalancesDatabaseID,
		DebtsDatabaseID:    cfg.Notion.DebtsDatabaseID,
		Currency:           cfg.Currency,
		DryRun:             *dryRun,
	}

	failed := false
	if *owner != "" {
		state := &pipeline.PipelineState{Owner: *owner, Options: opts}
		p := pipeline.NewPipeline(
			&pipeline.LoadLedgerStep{Repo: repo, Config: cfg},
			&pipeline.RunEngineStep{},
		)
		if err := p.Execute(logger.WithContext(ctx, logger.ForOwner(log, *owner)), state); err != nil {
			log.Fatal().Err(err).Msg("Failed to reconcile")
		}
		stats, err := publisher.SyncBalances(ctx, state.Report.Balances)
		if err != nil {
			log.Fatal().Err(err).Msg("Balance sync failed")
		}
		failed = failed || stats.Failed > 0
		printStats("balances of "+*owner, stats)
	}

	for _, group := range groupIDs {
		expenses, err := repo.ListExpenses(ctx, group)
		if err != nil {
			log.Fatal().Err(err).Str("group", group).Msg("Failed to list expenses")
		}
		res := settlement.Settle(expenses)
		if err := settlement.Verify(res); err != nil {
			log.Fatal().Err(err).Str("group", group).Msg("Settlement is inconsistent")
		}
		stats, err := publisher.SyncDebts(ctx, group, res)
		if err != nil {
			log.Fatal().Err(err).Str("group", group).Msg("Debt sync failed")
		}
		failed = failed || stats.Failed > 0
		printStats("debts of "+group, stats)
	}

	if failed {
		log.Error().Msg("Some pages could not be synced")
		os.Exit(1)
	}
	fmt.Println("Sync completed successfully.")
}

func printStats(what string, s notionsync.Stats) {
	fmt.Printf("%s: %d created, %d updated, %d archived, %d failed\n", what, s.Created, s.Updated, s.Archived, s.Failed)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
