package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobsList returns the caller's jobs, newest first, with limit/offset paging.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	jobs, err := a.Jobs.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}

	items := make([]jobView, 0, len(jobs))
	for i := range jobs {
		items = append(items, viewOf(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// JobGet returns a single job scoped to its owner.
func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

type vendorCheckView struct {
	Checked       bool     `json:"checked"`
	StatusKnown   bool     `json:"status_known"`
	Status        string   `json:"status,omitempty"`
	QueuePosition int      `json:"queue_position,omitempty"`
	Logs          []string `json:"logs,omitempty"`
}

// JobPoll is the client-triggered timeout reconciliation check. Before the
// webhook threshold it only reports elapsed time; past it, the vendor's
// status API is queried directly and a terminal answer force-updates the job.
func (a *App) JobPoll(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	outcome, err := a.Reconciler.Check(r.Context(), job)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to reconcile job")
		return
	}

	check := vendorCheckView{
		Checked:     outcome.Checked,
		StatusKnown: outcome.StatusKnown,
	}
	if outcome.StatusKnown {
		check.Status = string(outcome.VendorStatus)
		check.QueuePosition = outcome.QueuePosition
		for _, line := range outcome.Logs {
			check.Logs = append(check.Logs, line.Message)
		}
	}

	a.json(w, http.StatusOK, map[string]any{
		"job":             viewOf(outcome.Job),
		"elapsed_seconds": int(outcome.Elapsed.Seconds()),
		"vendor":          check,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
