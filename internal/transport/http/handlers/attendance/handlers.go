package attendance

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kintai/internal/domain/capture"
	"kintai/internal/domain/punch"
	"kintai/internal/domain/summary"
	"kintai/internal/platform/metrics"
	"kintai/internal/transport/http/api"
)

// Handler exposes the operational surface: correction entry, summary reads,
// daily approval and the conflicted-queue review list. Tap capture itself
// never goes through HTTP; readers talk to the coordinator.
type Handler struct {
	Punches   *punch.Service
	Builder   *summary.Builder
	Summaries summary.Store
	Queue     *capture.Queue
	Collector *metrics.Collector
	Loc       *time.Location
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/punches/corrections", h.handleCorrection)
	r.Route("/employees/{employeeID}/summaries", func(r chi.Router) {
		r.Get("/daily", h.handleDailySummary)
		r.Post("/daily/approve", h.handleApproveDaily)
		r.Get("/monthly", h.handleMonthlySummary)
	})
	r.Get("/queue/conflicts", h.handleConflicts)
	r.Get("/metrics", h.handleMetrics)
}

type correctionPayload struct {
	RecordID    string    `json:"recordId"`
	NewTime     time.Time `json:"newTime"`
	Reason      string    `json:"reason"`
	CorrectorID string    `json:"correctorId"`
}

func (h *Handler) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var payload correctionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	rec, err := h.Punches.Correct(r.Context(), punch.CorrectionRequest{
		RecordID:    payload.RecordID,
		NewTime:     payload.NewTime,
		Reason:      payload.Reason,
		CorrectorID: payload.CorrectorID,
	})
	switch {
	case errors.Is(err, punch.ErrRecordNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "punch record not found")
	case errors.Is(err, punch.ErrInvalidTransition),
		errors.Is(err, punch.ErrDailyLimitExceeded),
		errors.Is(err, punch.ErrAlreadyTerminal):
		api.Fail(w, http.StatusUnprocessableEntity, "sequence_conflict", err.Error())
	case err != nil:
		api.Fail(w, http.StatusBadRequest, "correction_rejected", err.Error())
	default:
		api.Success(w, rec)
	}
}

func (h *Handler) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), h.Loc)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}

	s, err := h.Builder.Daily(r.Context(), employeeID, date)
	if errors.Is(err, summary.ErrSummaryNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "no summary for that day")
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_read_failed", "failed to load summary")
		return
	}
	api.Success(w, s)
}

type approvePayload struct {
	Date       string `json:"date"`
	ApprovedBy string `json:"approvedBy"`
}

func (h *Handler) handleApproveDaily(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	var payload approvePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if payload.ApprovedBy == "" {
		api.Fail(w, http.StatusBadRequest, "bad_request", "approvedBy is required")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", payload.Date, h.Loc)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}

	start, _ := punch.DayWindow(date, h.Loc)
	if err := h.Summaries.ApproveDaily(r.Context(), employeeID, start, payload.ApprovedBy, time.Now()); err != nil {
		if errors.Is(err, summary.ErrSummaryNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "no summary for that day")
			return
		}
		api.Fail(w, http.StatusInternalServerError, "approve_failed", "failed to approve summary")
		return
	}
	api.Success(w, map[string]any{"approved": true})
}

func (h *Handler) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "year must be numeric")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		api.Fail(w, http.StatusBadRequest, "bad_request", "month must be 1-12")
		return
	}

	s, err := h.Builder.Monthly(r.Context(), employeeID, year, time.Month(month))
	if errors.Is(err, summary.ErrSummaryNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "no summary for that month")
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_read_failed", "failed to load summary")
		return
	}
	api.Success(w, s)
}

func (h *Handler) handleConflicts(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Queue.Conflicted(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "queue_read_failed", "failed to list conflicts")
		return
	}
	if entries == nil {
		entries = []capture.Entry{}
	}
	api.Success(w, entries)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Collector.Snapshot())
}
