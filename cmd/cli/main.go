// Command cli works on a local or remote ledger: import snapshots, reconcile
// balances, teach the classifier and settle group expenses.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/infra"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand.
type app struct {
	configPath string
	owner      string
	verbose    bool

	cfg  *config.Config
	log  zerolog.Logger
	repo pipeline.Repository
	out  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{out: stdout}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Personal ledger: categorize, reconcile and settle",
		Long: `ledger imports bank-style transaction snapshots, categorizes every row,
reconciles balances across accounts without double-counting internal
transfers and settles shared group expenses.

Example Usage:
  ledger import march.xlsx --owner alice
  ledger reconcile --from 2024-01 --to 2024-06
  ledger learn "CB LIDL 12/03" Food
  ledger settle trip-2024`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(stderr)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML configuration (or set LEDGER_CONFIG env)")
	root.PersistentFlags().StringVar(&a.owner, "owner", "", "Owner of the ledger (default: owner from the configuration)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newImportCmd(a),
		newUploadCmd(a),
		newReconcileCmd(a),
		newClassifyCmd(a),
		newLearnCmd(a),
		newSettleCmd(a),
		newSuggestCmd(a),
		newExportCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(stderr io.Writer) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	a.log = logger.NewConsole(stderr, level)
	return nil
}

// repository opens the configured backend on first use.
func (a *app) repository(ctx context.Context) (pipeline.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	repo, err := infra.OpenRepository(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	return repo, nil
}

func (a *app) close() error {
	if a.repo == nil {
		return nil
	}
	err := a.repo.Close()
	a.repo = nil
	return err
}

func (a *app) ownerName() (string, error) {
	if a.owner != "" {
		return a.owner, nil
	}
	if a.cfg.Owner != "" {
		return a.cfg.Owner, nil
	}
	return "", fmt.Errorf("--owner is required when the configuration has no owner")
}

// context returns ctx carrying a logger tagged with owner.
func (a *app) context(ctx context.Context, owner string) context.Context {
	return logger.WithContext(ctx, logger.ForOwner(a.log, owner))
}

func (a *app) deps(repo pipeline.Repository) pipeline.Deps {
	return pipeline.Deps{Repo: repo, Config: a.cfg}
}
