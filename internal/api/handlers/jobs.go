package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// EnqueueRecompute handles POST /api/owners/{owner}/recompute
// An optional body {"source_uri": "gs://...", "replace": true} turns the job
// into an import.
func (h *JobsHandler) EnqueueRecompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := mux.Vars(r)["owner"]

	var req struct {
		SourceURI string `json:"source_uri"`
		Replace   bool   `json:"replace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SourceURI != "" && !strings.HasPrefix(req.SourceURI, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri must be a gs:// URI")
		return
	}
	if req.Replace && req.SourceURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "replace requires a source_uri")
		return
	}

	job := &jobs.RecomputeJob{
		Owner:     owner,
		Kind:      jobs.JobKindRecompute,
		SourceURI: req.SourceURI,
		Replace:   req.Replace,
	}
	if req.SourceURI != "" {
		job.Kind = jobs.JobKindImport
	}

	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to enqueue recompute job")
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteError(w, status, "Failed to enqueue recompute job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("owner", owner).
		Str("kind", string(job.Kind)).
		Msg("Recompute job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Owner:  query.Get("owner"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
