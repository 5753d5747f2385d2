package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/gcs"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a .xlsx or .json snapshot and recompute the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerName()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}
			records, err := pipeline.DecodeSnapshot(filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			ctx := a.context(cmd.Context(), owner)
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}

			// FetchSnapshotStep is a no-op without a SourceURI, so the import
			// pipeline starts from the records read here.
			state := &pipeline.PipelineState{Owner: owner, Records: records, Replace: replace}
			if err := pipeline.NewImportPipeline(a.deps(repo)).Execute(ctx, state); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Imported %d transactions, %d categories updated.\n", state.Imported, state.Updated)
			printWarnings(a, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the owner's stored transactions with the snapshot")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var bucket, object string

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a snapshot to Cloud Storage for a remote import",
		Long: `upload copies a local .xlsx or .json snapshot to the configured bucket and
prints its gs:// URI, to be passed as source_uri to the recompute endpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				bucket = a.cfg.GCS.Bucket
			}
			if bucket == "" {
				return fmt.Errorf("--bucket is required when gcs.bucket is not configured")
			}
			if object == "" {
				object = a.cfg.GCS.SnapshotsPrefix + filepath.Base(args[0])
			}

			ctx := cmd.Context()
			storage, err := gcs.NewService(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storage.UploadFile(ctx, bucket, object, args[0]); err != nil {
				return err
			}
			a.log.Info().Str("bucket", bucket).Str("object", object).Msg("Uploaded snapshot")
			fmt.Fprintf(a.out, "gs://%s/%s\n", bucket, object)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (default: gcs.bucket)")
	cmd.Flags().StringVar(&object, "object", "", "Object name (default: snapshots prefix + file name)")
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var (
		from, to       string
		includePlanned bool
		reclassify     bool
		persist        bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Print per-account balances for a range of months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerName()
			if err != nil {
				return err
			}
			opts, err := engineOptions(from, to)
			if err != nil {
				return err
			}
			opts.IncludePlanned = includePlanned
			opts.Reclassify = reclassify

			ctx := a.context(cmd.Context(), owner)
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}

			state := &pipeline.PipelineState{Owner: owner, Options: opts}
			p := pipeline.NewPipeline(
				&pipeline.LoadLedgerStep{Repo: repo, Config: a.cfg},
				&pipeline.RunEngineStep{},
				&pipeline.ValidateCategoriesStep{Repo: repo, Config: a.cfg},
			)
			if persist {
				p = pipeline.NewRecomputePipeline(a.deps(repo))
			}
			if err := p.Execute(ctx, state); err != nil {
				return err
			}

			printReport(a, state.Report)
			if persist {
				fmt.Fprintf(a.out, "\n%d categories updated.\n", state.Updated)
			}
			printWarnings(a, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First month, YYYY-MM")
	cmd.Flags().StringVar(&to, "to", "", "Last month, YYYY-MM")
	cmd.Flags().BoolVar(&includePlanned, "include-planned", false, "Include planned transactions")
	cmd.Flags().BoolVar(&reclassify, "reclassify", false, "Ignore categories already stored on the rows")
	cmd.Flags().BoolVar(&persist, "persist", false, "Write changed categories back to storage")
	return cmd
}

func engineOptions(from, to string) (engine.Options, error) {
	var opts engine.Options
	var err error
	if from != "" {
		if opts.From, err = domain.ParsePeriod(from); err != nil {
			return opts, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if opts.To, err = domain.ParsePeriod(to); err != nil {
			return opts, fmt.Errorf("--to: %w", err)
		}
	}
	if from != "" && to != "" && opts.To.Before(opts.From) {
		return opts, fmt.Errorf("--from %s is after --to %s", from, to)
	}
	return opts, nil
}

func printReport(a *app, report engine.Report) {
	res := report.Balances
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(w, "Account\tProfile\tOpening\t")
	for _, p := range res.Periods {
		fmt.Fprintf(w, "%s\t", p)
	}
	fmt.Fprintln(w)
	for _, s := range res.Accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t", s.Account, s.Profile, money.Format(s.Opening, a.cfg.Currency))
		for _, b := range s.Balances {
			fmt.Fprintf(w, "%s\t", money.Format(b, a.cfg.Currency))
		}
		fmt.Fprintln(w)
	}
	w.Flush()

	if len(res.Summaries) > 0 {
		fmt.Fprintln(a.out)
		w = tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Profile\tMonth\tIncome\tExpenses\tNet\tClosing\t")
		for _, m := range res.Summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", m.Profile, m.Period,
				money.Format(m.Income, a.cfg.Currency),
				money.Format(m.Expenses, a.cfg.Currency),
				money.Format(m.Net, a.cfg.Currency),
				money.Format(m.Closing, a.cfg.Currency))
		}
		w.Flush()
	}

	for _, s := range report.Savings {
		fmt.Fprintf(a.out, "Savings %s: %s of %s\n", s.Profile,
			money.Format(s.Current, a.cfg.Currency), money.Format(s.Target, a.cfg.Currency))
	}
	for _, u := range res.Unresolved {
		fmt.Fprintf(a.out, "Unresolved transfer %s %q: %s\n", u.Transaction.Date.Format("2006-01-02"), u.Transaction.RawLabel, u.Reason)
	}
}

func printWarnings(a *app, state *pipeline.PipelineState) {
	for _, w := range state.Warnings {
		a.log.Warn().Msg(w.String())
	}
	if state.Dropped > 0 {
		a.log.Warn().Int("dropped", state.Dropped).Msg("More warnings were not recorded")
	}
}
