package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/dvloznov/finance-ledger/internal/settlement"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// GroupsHandler handles shared expense groups.
type GroupsHandler struct {
	repo pipeline.ExpenseRepository
	log  zerolog.Logger
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(repo pipeline.ExpenseRepository, log zerolog.Logger) *GroupsHandler {
	return &GroupsHandler{
		repo: repo,
		log:  log,
	}
}

// Settle handles POST /api/groups/{group}/settle
// Expenses in the optional body are stored first; the whole group is then
// settled. Invalid expenses are stored too and come back as rejected.
func (h *GroupsHandler) Settle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group := mux.Vars(r)["group"]

	var req struct {
		Expenses []ExpenseDTO `json:"expenses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Expenses) > 0 {
		expenses := make([]domain.SharedExpense, 0, len(req.Expenses))
		for _, e := range req.Expenses {
			expense, err := e.toDomain(group)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			expenses = append(expenses, expense)
		}
		if err := h.repo.InsertExpenses(ctx, expenses); err != nil {
			h.log.Error().Err(err).Str("group", group).Msg("Failed to store expenses")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store expenses")
			return
		}
	}

	expenses, err := h.repo.ListExpenses(ctx, group)
	if err != nil {
		h.log.Error().Err(err).Str("group", group).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list expenses")
		return
	}

	res := settlement.Settle(expenses)
	if err := settlement.Verify(res); err != nil {
		h.log.Error().Err(err).Str("group", group).Msg("Settlement does not balance")
		middleware.WriteError(w, http.StatusInternalServerError, "Settlement does not balance")
		return
	}

	h.log.Info().
		Str("group", group).
		Int("accepted", res.Accepted).
		Int("rejected", len(res.Rejected)).
		Int("edges", len(res.Edges)).
		Msg("Settled group")

	middleware.WriteJSON(w, http.StatusOK, newSettlementDTO(group, res))
}
