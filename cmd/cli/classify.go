package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/dvloznov/finance-ledger/internal/suggest"
	"github.com/spf13/cobra"
)

// loadContext builds the reconciliation context of owner from storage.
func (a *app) loadContext(cmd *cobra.Command, owner string) (*engine.ReconciliationContext, pipeline.Repository, error) {
	ctx := a.context(cmd.Context(), owner)
	repo, err := a.repository(ctx)
	if err != nil {
		return nil, nil, err
	}
	accounts, err := repo.ListAccounts(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	overrides, err := repo.ListOverrides(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.BuildContext(a.cfg, owner, accounts, overrides), repo, nil
}

func newClassifyCmd(a *app) *cobra.Command {
	var amount, account, extra string

	cmd := &cobra.Command{
		Use:   "classify LABEL",
		Short: "Show how a raw label would be categorized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerName()
			if err != nil {
				return err
			}
			amt, err := money.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			rc, _, err := a.loadContext(cmd, owner)
			if err != nil {
				return err
			}

			c := rc.Classifier()
			tx := domain.Transaction{
				Date:     time.Now(),
				RawLabel: args[0],
				Extra:    extra,
				Amount:   amt,
				Account:  account,
				Owner:    owner,
			}
			tx.NormalizedLabel = c.Normalize(tx.RawLabel)
			res := c.Classify(tx)

			fmt.Fprintf(a.out, "Normalized: %s\n", tx.NormalizedLabel)
			fmt.Fprintf(a.out, "Category:   %s\n", res.Category)
			fmt.Fprintf(a.out, "Source:     %s", res.Source)
			if res.Rule != "" {
				fmt.Fprintf(a.out, " (%s)", res.Rule)
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "-1", "Signed amount of the transaction")
	cmd.Flags().StringVar(&account, "account", "", "Account the transaction is recorded on")
	cmd.Flags().StringVar(&extra, "extra", "", "Additional label text")
	return cmd
}

func newLearnCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn LABEL CATEGORY",
		Short: "Remember a category for every transaction sharing a label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerName()
			if err != nil {
				return err
			}
			category := strings.TrimSpace(args[1])
			if category == "" {
				return fmt.Errorf("category must not be empty")
			}
			rc, repo, err := a.loadContext(cmd, owner)
			if err != nil {
				return err
			}

			// Normalizing is idempotent, so an already normalized label is kept.
			o := rc.Memory.Learn(owner, rc.Classifier().Normalize(args[0]), category)
			if err := repo.SaveOverride(a.context(cmd.Context(), owner), o); err != nil {
				return err
			}
			a.log.Info().
				Str("owner", owner).
				Str("label", o.NormalizedLabel).
				Str("category", o.Category).
				Int64("version", o.Version).
				Msg("Learned category override")

			fmt.Fprintf(a.out, "%s -> %s (version %d)\n", o.NormalizedLabel, o.Category, o.Version)
			return nil
		},
	}
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var (
		model      string
		maxLabels  int
		learnAbove float64
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask Gemini for categories of uncategorized labels",
		Long: `suggest sends the distinct uncategorized labels of the ledger to a Gemini
model and prints the proposed categories. Nothing is stored unless
--learn-above is set, in which case suggestions at or above that
confidence are learned as overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerName()
			if err != nil {
				return err
			}
			ctx := a.context(cmd.Context(), owner)
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}

			state := &pipeline.PipelineState{Owner: owner}
			p := pipeline.NewPipeline(
				&pipeline.LoadLedgerStep{Repo: repo, Config: a.cfg},
				&pipeline.RunEngineStep{},
			)
			if err := p.Execute(ctx, state); err != nil {
				return err
			}

			categories, err := repo.ListCategories(ctx, owner)
			if err != nil {
				return err
			}
			categories = mergeCategories(a.cfg.KnownCategories(), categories)

			if model == "" {
				model = a.cfg.Gemini.Model
			}
			gemini, err := suggest.NewGeminiModel(ctx, model)
			if err != nil {
				return err
			}
			s := &suggest.Suggester{Model: gemini, Categories: categories, MaxLabels: maxLabels}
			suggestions, err := s.Suggest(ctx, owner, state.Report.Transactions)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(a.out, "Nothing to suggest.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Label\tCategory\tConfidence\tRows")
			for _, sg := range suggestions {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\n", sg.NormalizedLabel, sg.Category, sg.Confidence, sg.Occurrences)
			}
			w.Flush()

			if learnAbove <= 0 {
				return nil
			}
			learned := 0
			for _, sg := range suggestions {
				if sg.Confidence < learnAbove {
					continue
				}
				o := state.Context.Memory.Learn(owner, sg.NormalizedLabel, sg.Category)
				if err := repo.SaveOverride(ctx, o); err != nil {
					return err
				}
				learned++
			}
			fmt.Fprintf(a.out, "Learned %d overrides.\n", learned)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Gemini model (default: gemini.model from the configuration)")
	cmd.Flags().IntVar(&maxLabels, "max-labels", suggest.DefaultMaxLabels, "Most labels sent in one prompt")
	cmd.Flags().Float64Var(&learnAbove, "learn-above", 0, "Learn suggestions with at least this confidence (0 disables)")
	return cmd
}

// mergeCategories returns the case-insensitive union of both lists, sorted.
func mergeCategories(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, c := range list {
			c = strings.TrimSpace(c)
			key := strings.ToLower(c)
			if c == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
