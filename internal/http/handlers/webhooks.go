package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
)

const maxWebhookBody = 1 << 20

// FalWebhook receives the vendor's completion callback. Delivery is at least
// once and possibly out of order, so the terminal update must stay idempotent;
// any failure after signature verification returns 5xx so the vendor retries.
func (a *App) FalWebhook(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId query parameter required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	defer r.Body.Close()

	if a.Cfg.WebhookVerificationEnabled() {
		if err := fal.VerifyWebhook(a.Cfg.FalWebhookSecret, r.Header, body, a.now()); err != nil {
			a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("webhook verification failed")
			a.error(w, http.StatusUnauthorized, "unauthorized", "webhook signature verification failed")
			return
		}
	}

	var payload fal.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid webhook payload")
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	deliveredAt := a.now()
	upd := domain.TerminalUpdate{
		WebhookStatus: domain.WebhookDelivered,
		DeliveredAt:   &deliveredAt,
	}
	if payload.OK() {
		resultURL := payload.Payload.OutputURL()
		if resultURL == "" {
			// The vendor reported success but shipped no artifact; the webhook
			// itself was received correctly, so delivery is still recorded.
			upd.Status = domain.JobStatusFailed
			upd.ErrorMessage = "vendor reported success without output"
		} else {
			upd.Status = domain.JobStatusCompleted
			upd.ResultURL = resultURL
		}
	} else {
		upd.Status = domain.JobStatusFailed
		upd.ErrorMessage = payload.Error
		if upd.ErrorMessage == "" {
			upd.ErrorMessage = "generation failed"
		}
	}

	if err := a.Jobs.ApplyTerminal(r.Context(), job.ID, upd); err != nil {
		// 5xx makes the vendor's delivery system retry.
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to apply webhook outcome")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update job")
		return
	}

	a.Logger.Info().
		Str("job_id", job.ID).
		Str("request_id", payload.RequestID).
		Str("status", string(upd.Status)).
		Msg("webhook delivered")

	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"jobId":   job.ID,
		"status":  string(upd.Status),
	})
}

// FalWebhookPreflight answers CORS preflight for the vendor's delivery system
// with its custom signature headers allow-listed.
func (a *App) FalWebhookPreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+strings.Join(fal.WebhookHeaders, ", "))
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}
