package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/ledger-qa/internal/api/middleware"
	"github.com/dvloznov/ledger-qa/internal/jobs"
	"github.com/rs/zerolog"
)

// RouterConfig holds what NewRouter wires together.
type RouterConfig struct {
	Ledger    Ledger
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Log       zerolog.Logger

	RateLimit float64
	RateBurst int
}

// method restricts a handler to one HTTP method.
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	questions := NewQuestionsHandler(cfg.Ledger, cfg.Log)
	analyses := NewAnalysesHandler(cfg.Ledger, cfg.Publisher, cfg.Log)
	ledgerHandler := NewLedgerHandler(cfg.Ledger, cfg.Log)
	jobsHandler := NewJobsHandler(cfg.JobStore, cfg.Log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/ask", method(http.MethodPost, questions.Ask))
	mux.HandleFunc("/api/context", method(http.MethodPost, questions.Context))
	mux.HandleFunc("/api/analyses", method(http.MethodPost, analyses.Create))

	mux.HandleFunc("/api/summary", method(http.MethodGet, ledgerHandler.Summary))
	mux.HandleFunc("/api/transactions", method(http.MethodGet, ledgerHandler.ListTransactions))
	mux.HandleFunc("/api/reload", method(http.MethodPost, ledgerHandler.Reload))

	mux.HandleFunc("/api/jobs", method(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(cfg.Log)(
		middleware.Logger(cfg.Log)(
			middleware.RequestID(cfg.Log)(
				middleware.RateLimit(cfg.RateLimit, cfg.RateBurst)(
					middleware.CORS(mux),
				),
			),
		),
	)
}
