package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// maxRequestBody bounds JSON bodies, expense lists included.
const maxRequestBody = 1 << 20

// RouterDeps are the collaborators of the HTTP API.
type RouterDeps struct {
	Repo      pipeline.Repository
	Config    *config.Config
	Jobs      jobs.JobStore
	Publisher jobs.Publisher
	Log       zerolog.Logger
}

// NewRouter builds the HTTP API with its middleware chain.
func NewRouter(deps RouterDeps) http.Handler {
	ledger := NewLedgerHandler(deps.Repo, deps.Config, deps.Log)
	groups := NewGroupsHandler(deps.Repo, deps.Log)
	jobsHandler := NewJobsHandler(deps.Jobs, deps.Publisher, deps.Log)

	r := mux.NewRouter()
	r.HandleFunc("/health", Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(deps.Config.Server.AuthToken), middleware.MaxBody(maxRequestBody))

	api.HandleFunc("/owners/{owner}/transactions", ledger.ListTransactions).Methods("GET")
	api.HandleFunc("/owners/{owner}/reconcile", ledger.Reconcile).Methods("POST")
	api.HandleFunc("/owners/{owner}/overrides", ledger.ListOverrides).Methods("GET")
	api.HandleFunc("/owners/{owner}/overrides", ledger.LearnOverride).Methods("POST")
	api.HandleFunc("/owners/{owner}/recompute", jobsHandler.EnqueueRecompute).Methods("POST")

	api.HandleFunc("/groups/{group}/settle", groups.Settle).Methods("POST")

	api.HandleFunc("/jobs", jobsHandler.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobsHandler.GetJob).Methods("GET")

	// Apply middleware (order matters: outermost first)
	return middleware.Recovery(deps.Log)(
		middleware.RequestID(
			middleware.Logger(deps.Log)(
				middleware.CORS(r),
			),
		),
	)
}
