package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/ledger-qa/internal/api/middleware"
	"github.com/dvloznov/ledger-qa/internal/engine"
	"github.com/dvloznov/ledger-qa/internal/jobs"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/dvloznov/ledger-qa/internal/stats"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Ledger is the question-answering surface the handlers need.
// *engine.Engine implements it.
type Ledger interface {
	SourceName() string
	HasAnalyzer() bool
	Ask(ctx context.Context, q string) (string, error)
	Context(ctx context.Context, q string) (selector.Payload, error)
	Summary(ctx context.Context) (stats.Summary, error)
	Records(ctx context.Context, f engine.RecordFilter) ([]ledger.Record, error)
	Invalidate()
}

type questionRequest struct {
	Question string `json:"question"`
}

// decodeQuestion reads {"question": "..."} and writes a 400 on failure.
func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req questionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		middleware.WriteError(w, http.StatusBadRequest, "question is required")
		return "", false
	}
	return q, true
}

// requestLog tags base with the request ID assigned by the middleware.
func requestLog(base zerolog.Logger, r *http.Request) zerolog.Logger {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		return base.With().Str("request_id", id).Logger()
	}
	return base
}

// writeLedgerError maps engine failures to status codes.
func writeLedgerError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	var loadErr *ledger.DataLoadError
	switch {
	case errors.As(err, &loadErr):
		log.Error().Err(err).Str("source", loadErr.Source).Msg("Ledger unavailable")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Ledger data is unavailable")
	case errors.Is(err, engine.ErrNoGenerator):
		middleware.WriteError(w, http.StatusNotImplemented, "No generator configured")
	default:
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// QuestionsHandler answers questions synchronously.
type QuestionsHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewQuestionsHandler creates a new questions handler.
func NewQuestionsHandler(l Ledger, log zerolog.Logger) *QuestionsHandler {
	return &QuestionsHandler{ledger: l, log: log}
}

// Ask handles POST /api/ask
func (h *QuestionsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	answer, err := h.ledger.Ask(r.Context(), q)
	if err != nil {
		writeLedgerError(w, requestLog(h.log, r), err, "Failed to answer question")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// Context handles POST /api/context
func (h *QuestionsHandler) Context(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	payload, err := h.ledger.Context(r.Context(), q)
	if err != nil {
		writeLedgerError(w, requestLog(h.log, r), err, "Failed to build context")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, payload)
}

// AnalysesHandler queues questions for the generator.
type AnalysesHandler struct {
	ledger    Ledger
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(l Ledger, publisher jobs.Publisher, log zerolog.Logger) *AnalysesHandler {
	return &AnalysesHandler{ledger: l, publisher: publisher, log: log}
}

// Create handles POST /api/analyses
func (h *AnalysesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ledger.HasAnalyzer() {
		middleware.WriteError(w, http.StatusNotImplemented, "No generator configured")
		return
	}

	q, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	log := requestLog(h.log, r)

	job := &jobs.AnalysisJob{Question: q, Source: h.ledger.SourceName()}
	if err := h.publisher.PublishAnalysis(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	log.Info().Str("job_id", job.JobID).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// LedgerHandler exposes the loaded ledger.
type LedgerHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l Ledger, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, log: log}
}

// Summary handles GET /api/summary
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.ledger.Summary(r.Context())
	if err != nil {
		writeLedgerError(w, requestLog(h.log, r), err, "Failed to summarize ledger")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

// ListTransactions handles GET /api/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := engine.RecordFilter{
		Category: query.Get("category"),
		Type:     query.Get("type"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	records, err := h.ledger.Records(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, requestLog(h.log, r), err, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// Reload handles POST /api/reload
func (h *LedgerHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.ledger.Invalidate()
	log := requestLog(h.log, r)
	log.Info().Str("source", h.ledger.SourceName()).Msg("Snapshot invalidated")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "reloading"})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log := requestLog(h.log, r)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
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

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := requestLog(h.log, r)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
