package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/transfer"
	"github.com/dvloznov/finance-ledger/internal/xlsx"
)

// PipelineStep represents a single step of a ledger pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Owner     string
	SourceURI string // gs:// snapshot to import, empty for a plain recompute
	Replace   bool   // swap the owner's rows for the imported ones
	Options   engine.Options

	Records      []domain.RawRecord
	Imported     int
	Transactions []domain.Transaction // as loaded from storage
	Context      *engine.ReconciliationContext
	Report       engine.Report
	Updated      int
	ReportURI    string

	Warnings []Warning
	Dropped  int // warnings not kept because of the cap
}

// Warn records non-fatal problems, keeping at most maxWarnings.
func (s *PipelineState) Warn(ws ...Warning) {
	for _, w := range ws {
		if len(s.Warnings) >= maxWarnings {
			s.Dropped++
			continue
		}
		s.Warnings = append(s.Warnings, w)
	}
}

// Deps are the collaborators shared by the steps.
type Deps struct {
	Repo    Repository
	Storage StorageService // optional, disables import and report upload when nil
	Config  *config.Config
}

// Step 1: FetchSnapshotStep downloads and decodes the snapshot at SourceURI.
type FetchSnapshotStep struct {
	Storage StorageService
}

func (s *FetchSnapshotStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.SourceURI == "" {
		return nil
	}
	if s.Storage == nil {
		return fmt.Errorf("FetchSnapshotStep: no storage configured for %s", state.SourceURI)
	}
	data, err := s.Storage.FetchFromGCS(ctx, state.SourceURI)
	if err != nil {
		return fmt.Errorf("FetchSnapshotStep: %w", err)
	}
	records, err := DecodeSnapshot(ExtractFilenameFromGCSURI(state.SourceURI), data)
	if err != nil {
		return fmt.Errorf("FetchSnapshotStep: %w", err)
	}
	state.Records = records
	return nil
}

// Step 2: TransformRecordsStep turns raw records into transactions.
type TransformRecordsStep struct{}

func (s *TransformRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Records) == 0 {
		return nil
	}
	txs, warnings := TransformRecords(state.Owner, state.Records)
	state.Warn(warnings...)
	state.Transactions = txs
	return nil
}

// Step 3: StoreTransactionsStep inserts the imported transactions.
type StoreTransactionsStep struct {
	Repo TransactionRepository
}

func (s *StoreTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.SourceURI == "" && len(state.Records) == 0 {
		return nil
	}
	if state.Replace {
		// An import whose rows were all rejected must not wipe the ledger.
		if len(state.Records) > 0 && len(state.Transactions) == 0 {
			return fmt.Errorf("StoreTransactionsStep: %w: none of %d records could be imported", ErrNothingToReplace, len(state.Records))
		}
		if err := s.Repo.ReplaceTransactions(ctx, state.Owner, state.Transactions); err != nil {
			return fmt.Errorf("StoreTransactionsStep: %w", err)
		}
	} else if err := s.Repo.InsertTransactions(ctx, state.Transactions); err != nil {
		return fmt.Errorf("StoreTransactionsStep: %w", err)
	}
	state.Imported = len(state.Transactions)
	return nil
}

// Step 4: LoadLedgerStep loads the owner's transactions, accounts and
// overrides and builds the reconciliation context.
type LoadLedgerStep struct {
	Repo   Repository
	Config *config.Config
}

func (s *LoadLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := s.Repo.ListTransactions(ctx, state.Owner)
	if err != nil {
		return fmt.Errorf("LoadLedgerStep: %w", err)
	}
	accounts, err := s.Repo.ListAccounts(ctx, state.Owner)
	if err != nil {
		return fmt.Errorf("LoadLedgerStep: %w", err)
	}
	overrides, err := s.Repo.ListOverrides(ctx, state.Owner)
	if err != nil {
		return fmt.Errorf("LoadLedgerStep: %w", err)
	}
	state.Transactions = txs
	state.Context = BuildContext(s.Config, state.Owner, accounts, overrides)
	return nil
}

// Step 5: RunEngineStep categorizes and reconciles the loaded snapshot.
type RunEngineStep struct{}

func (s *RunEngineStep) Execute(ctx context.Context, state *PipelineState) error {
	report, err := engine.Run(state.Context, state.Transactions, state.Options)
	if err != nil {
		return fmt.Errorf("RunEngineStep: %w", err)
	}
	state.Report = report

	res := report.Balances
	for _, u := range res.Unresolved {
		state.Warn(Warning{Row: u.Index + 1, Field: "category", Value: u.Transaction.Category, Message: "unresolved transfer: " + u.Reason})
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("owner", state.Owner).
		Int("transactions", len(state.Transactions)).
		Int("periods", len(res.Periods)).
		Int("synthetic", len(res.Synthetic)).
		Int("paired", len(res.Pairs)).
		Int("unresolved", len(res.Unresolved)).
		Int("skipped", len(res.Skipped)).
		Msg("Reconciled ledger")
	return nil
}

// Step 6: ValidateCategoriesStep warns about categories nobody defined.
type ValidateCategoriesStep struct {
	Repo   CategoryRepository
	Config *config.Config
}

func (s *ValidateCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	detector := transfer.NewDetector(state.Context.Transfer, state.Report.Balances.Registry)
	validator, err := NewCategoryValidator(ctx, s.Repo, state.Owner, s.Config.KnownCategories(), detector)
	if err != nil {
		return fmt.Errorf("ValidateCategoriesStep: %w", err)
	}
	state.Warn(validator.Validate(state.Owner, state.Report.Transactions)...)
	return nil
}

// Step 7: PersistCategoriesStep writes back rows whose category or
// normalized label changed.
type PersistCategoriesStep struct {
	Repo TransactionRepository
}

func (s *PersistCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	changed := ChangedRows(state.Transactions, state.Report.Transactions)
	if len(changed) == 0 {
		return nil
	}
	if err := s.Repo.UpdateCategories(ctx, changed); err != nil {
		return fmt.Errorf("PersistCategoriesStep: %w", err)
	}
	state.Updated = len(changed)
	return nil
}

// ChangedRows returns the rows of after whose category or normalized label
// differs from the row at the same index in before.
func ChangedRows(before, after []domain.Transaction) []domain.Transaction {
	var changed []domain.Transaction
	for i, tx := range after {
		if i >= len(before) {
			break
		}
		if tx.ID == "" {
			continue
		}
		if tx.Category != before[i].Category || tx.NormalizedLabel != before[i].NormalizedLabel {
			changed = append(changed, tx)
		}
	}
	return changed
}

// Step 8: UploadReportStep uploads the run as a workbook.
type UploadReportStep struct {
	Storage StorageService
	Bucket  string
	Prefix  string
	Now     func() time.Time
}

func (s *UploadReportStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Storage == nil || s.Bucket == "" {
		return nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	var buf bytes.Buffer
	if err := xlsx.WriteReport(&buf, state.Report); err != nil {
		return fmt.Errorf("UploadReportStep: %w", err)
	}
	object := fmt.Sprintf("%s%s/%s.xlsx", s.Prefix, state.Owner, now().UTC().Format("20060102T150405Z"))
	if err := s.Storage.UploadBytes(ctx, s.Bucket, object, buf.Bytes(), ContentTypeXLSX); err != nil {
		return fmt.Errorf("UploadReportStep: %w", err)
	}
	state.ReportURI = fmt.Sprintf("gs://%s/%s", s.Bucket, object)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
		log.Debug().Int("step", i+1).Str("name", fmt.Sprintf("%T", step)).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewRecomputePipeline loads, reconciles, validates and persists one
// owner's ledger, then uploads the report when storage is configured.
func NewRecomputePipeline(deps Deps) *Pipeline {
	return NewPipeline(recomputeSteps(deps)...)
}

// NewImportPipeline imports the snapshot at PipelineState.SourceURI and then
// recomputes.
func NewImportPipeline(deps Deps) *Pipeline {
	steps := []PipelineStep{
		&FetchSnapshotStep{Storage: deps.Storage},
		&TransformRecordsStep{},
		&StoreTransactionsStep{Repo: deps.Repo},
	}
	return NewPipeline(append(steps, recomputeSteps(deps)...)...)
}

func recomputeSteps(deps Deps) []PipelineStep {
	return []PipelineStep{
		&LoadLedgerStep{Repo: deps.Repo, Config: deps.Config},
		&RunEngineStep{},
		&ValidateCategoriesStep{Repo: deps.Repo, Config: deps.Config},
		&PersistCategoriesStep{Repo: deps.Repo},
		&UploadReportStep{Storage: deps.Storage, Bucket: deps.Config.GCS.Bucket, Prefix: deps.Config.GCS.ReportsPrefix},
	}
}
