package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LedgerHandler handles the per-owner ledger endpoints.
type LedgerHandler struct {
	repo pipeline.Repository
	cfg  *config.Config
	log  zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(repo pipeline.Repository, cfg *config.Config, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		repo: repo,
		cfg:  cfg,
		log:  log,
	}
}

// ListTransactions handles GET /api/owners/{owner}/transactions
// Optional query parameters: from, to (YYYY-MM) and account.
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := mux.Vars(r)["owner"]
	query := r.URL.Query()

	from, to, ok := parseRange(w, query.Get("from"), query.Get("to"))
	if !ok {
		return
	}
	account := domain.AccountKey(query.Get("account"))

	txs, err := h.repo.ListTransactions(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	out := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		if account != "" && domain.AccountKey(tx.Account) != account {
			continue
		}
		p := tx.Period()
		if (from != domain.Period{}) && p.Before(from) {
			continue
		}
		if (to != domain.Period{}) && to.Before(p) {
			continue
		}
		out = append(out, newTransactionDTO(tx))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": out,
		"count":        len(out),
	})
}

// Reconcile handles POST /api/owners/{owner}/reconcile
// It runs the engine over the stored ledger and returns the report without
// persisting anything. Query parameters: from, to (YYYY-MM),
// include_planned and reclassify (booleans).
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	query := r.URL.Query()

	from, to, ok := parseRange(w, query.Get("from"), query.Get("to"))
	if !ok {
		return
	}
	opts := engine.Options{From: from, To: to}
	if opts.IncludePlanned, ok = parseBool(w, "include_planned", query.Get("include_planned")); !ok {
		return
	}
	if opts.Reclassify, ok = parseBool(w, "reclassify", query.Get("reclassify")); !ok {
		return
	}

	ctx := logger.WithContext(r.Context(), logger.ForOwner(logger.FromContext(r.Context()), owner))
	state := &pipeline.PipelineState{Owner: owner, Options: opts}
	p := pipeline.NewPipeline(
		&pipeline.LoadLedgerStep{Repo: h.repo, Config: h.cfg},
		&pipeline.RunEngineStep{},
		&pipeline.ValidateCategoriesStep{Repo: h.repo, Config: h.cfg},
	)
	if err := p.Execute(ctx, state); err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to reconcile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reconcile")
		return
	}

	dto := newReportDTO(state.Report)
	for _, warning := range state.Warnings {
		dto.Warnings = append(dto.Warnings, warning.String())
	}
	middleware.WriteJSON(w, http.StatusOK, dto)
}

// ListOverrides handles GET /api/owners/{owner}/overrides
func (h *LedgerHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	overrides, err := h.repo.ListOverrides(r.Context(), owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to list overrides")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list overrides")
		return
	}
	sort.Slice(overrides, func(i, j int) bool {
		return overrides[i].NormalizedLabel < overrides[j].NormalizedLabel
	})

	out := make([]OverrideDTO, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, newOverrideDTO(o))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"overrides": out,
		"count":     len(out),
	})
}

// LearnOverride handles POST /api/owners/{owner}/overrides
// The body carries either a raw label, normalized here with the owner's
// boilerplate, or an already normalized label.
func (h *LedgerHandler) LearnOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := mux.Vars(r)["owner"]

	var req struct {
		Label           string `json:"label"`
		NormalizedLabel string `json:"normalized_label"`
		Category        string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" || (req.Label == "" && req.NormalizedLabel == "") {
		middleware.WriteError(w, http.StatusBadRequest, "category and label or normalized_label are required")
		return
	}

	overrides, err := h.repo.ListOverrides(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to load overrides")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to learn override")
		return
	}
	rc := pipeline.BuildContext(h.cfg, owner, nil, overrides)

	// Memory keys are normalized labels; normalizing one again is a no-op.
	label := req.NormalizedLabel
	if label == "" {
		label = req.Label
	}
	o := rc.Memory.Learn(owner, rc.Classifier().Normalize(label), req.Category)
	if err := h.repo.SaveOverride(ctx, o); err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to save override")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to learn override")
		return
	}

	h.log.Info().
		Str("owner", owner).
		Str("label", o.NormalizedLabel).
		Str("category", o.Category).
		Int64("version", o.Version).
		Msg("Learned category override")

	middleware.WriteJSON(w, http.StatusCreated, newOverrideDTO(o))
}

// parseRange parses the optional from/to periods, writing a 400 on error.
func parseRange(w http.ResponseWriter, fromStr, toStr string) (from, to domain.Period, ok bool) {
	var err error
	if fromStr != "" {
		if from, err = domain.ParsePeriod(fromStr); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid from period, want YYYY-MM")
			return from, to, false
		}
	}
	if toStr != "" {
		if to, err = domain.ParsePeriod(toStr); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid to period, want YYYY-MM")
			return from, to, false
		}
	}
	if fromStr != "" && toStr != "" && to.Before(from) {
		middleware.WriteError(w, http.StatusBadRequest, "from must not be after to")
		return from, to, false
	}
	return from, to, true
}

func parseBool(w http.ResponseWriter, name, value string) (bool, bool) {
	if value == "" {
		return false, true
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid "+name+" flag")
		return false, false
	}
	return b, true
}
