package pipeline

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

// NewJobHandler runs the recompute or import pipeline for each job and
// copies the results onto it.
func NewJobHandler(deps Deps) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.RecomputeJob) error {
		log := logger.ForOwner(logger.FromContext(ctx), job.Owner).With().Str("job_id", job.JobID).Logger()
		ctx = logger.WithContext(ctx, log)

		state := &PipelineState{
			Owner:     job.Owner,
			SourceURI: job.SourceURI,
			Replace:   job.Replace,
		}
		p := NewRecomputePipeline(deps)
		if job.Kind == jobs.JobKindImport {
			p = NewImportPipeline(deps)
		}

		log.Info().Str("kind", string(job.Kind)).Str("source_uri", job.SourceURI).Msg("Processing recompute job")
		err := p.Execute(ctx, state)

		job.Imported += state.Imported
		job.Updated = state.Updated
		job.Warnings = len(state.Warnings) + state.Dropped
		job.ReportURI = state.ReportURI

		if err != nil {
			// Rows already stored must not be imported twice on retry.
			if state.Imported > 0 {
				job.Kind = jobs.JobKindRecompute
				job.SourceURI = ""
				job.Replace = false
			}
			log.Error().Err(err).Msg("Pipeline execution failed")
			return err
		}

		log.Info().
			Int("imported", state.Imported).
			Int("updated", state.Updated).
			Int("warnings", job.Warnings).
			Str("report_uri", state.ReportURI).
			Msg("Pipeline execution completed successfully")
		return nil
	}
}
