package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/dvloznov/finance-ledger/internal/settlement"
	"github.com/dvloznov/finance-ledger/internal/xlsx"
	"github.com/spf13/cobra"
)

func newSettleCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "settle GROUP",
		Short: "Compute who owes whom for a group's shared expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := args[0]
			ctx := cmd.Context()
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			expenses, err := repo.ListExpenses(ctx, group)
			if err != nil {
				return err
			}

			res := settlement.Settle(expenses)
			if err := settlement.Verify(res); err != nil {
				return err
			}
			for _, r := range res.Rejected {
				a.log.Warn().Str("group", group).Str("label", r.Expense.Label).Err(r.Err).Msg("Expense rejected")
			}

			printSettlement(a, res)
			if out != "" {
				if err := writeWorkbook(out, func(f *os.File) error { return xlsx.WriteSettlement(f, res) }); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the settlement to this .xlsx file")
	return cmd
}

func printSettlement(a *app, res settlement.Result) {
	cur := a.cfg.Currency
	if len(res.Edges) == 0 {
		fmt.Fprintln(a.out, "Nobody owes anything.")
	}
	for _, e := range res.Edges {
		fmt.Fprintf(a.out, "%s owes %s %s\n", e.Debtor, e.Creditor, money.Format(e.Amount, cur))
	}

	fmt.Fprintln(a.out)
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Participant\tPaid\tConsumed\tOwed\tOwing\tNet\t")
	for _, p := range res.Participants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", p.Name,
			money.Format(p.Paid, cur),
			money.Format(p.Consumed, cur),
			money.Format(p.Owed, cur),
			money.Format(p.Owing, cur),
			money.Format(p.Net, cur))
	}
	w.Flush()
	fmt.Fprintf(a.out, "%d expenses settled, %d rejected.\n", res.Accepted, len(res.Rejected))
}

func newExportCmd(a *app) *cobra.Command {
	var (
		from, to       string
		includePlanned bool
		txOnly         bool
	)

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the reconciled ledger to an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
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

			ctx := a.context(cmd.Context(), owner)
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			state := &pipeline.PipelineState{Owner: owner, Options: opts}
			p := pipeline.NewPipeline(
				&pipeline.LoadLedgerStep{Repo: repo, Config: a.cfg},
				&pipeline.RunEngineStep{},
			)
			if err := p.Execute(ctx, state); err != nil {
				return err
			}

			err = writeWorkbook(args[0], func(f *os.File) error {
				if txOnly {
					return xlsx.WriteTransactions(f, state.Report.Transactions)
				}
				return xlsx.WriteReport(f, state.Report)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First month, YYYY-MM")
	cmd.Flags().StringVar(&to, "to", "", "Last month, YYYY-MM")
	cmd.Flags().BoolVar(&includePlanned, "include-planned", false, "Include planned transactions")
	cmd.Flags().BoolVar(&txOnly, "transactions", false, "Only write the categorized transactions, in an importable layout")
	return cmd
}

func writeWorkbook(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
