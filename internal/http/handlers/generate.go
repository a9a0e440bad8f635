package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/middleware"
	"github.com/srlee0408/voguedrop-sub005/internal/prompt"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
)

// Duration bounds per modality, in seconds.
const (
	minVideoDuration = 1
	maxVideoDuration = 10
	minSoundDuration = 1
	maxSoundDuration = 22

	defaultVideoDuration = 5
	defaultSoundDuration = 8
)

type generateRequest struct {
	Type            string   `json:"type"`
	Prompt          string   `json:"prompt"`
	ImageURL        string   `json:"image_url"`
	EffectIDs       []string `json:"effect_ids"`
	DurationSeconds int      `json:"duration_seconds"`
}

type generateResponse struct {
	JobID          string `json:"job_id"`
	RequestID      string `json:"request_id"`
	Status         string `json:"status"`
	RemainingQuota int    `json:"remaining_quota"`
}

// Generate validates a submission, persists the job in pending state, then
// enqueues it with the vendor. Validation and the quota check happen before
// any record is written; a vendor rejection is terminal for this submission.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	jobType := domain.JobType(req.Type)
	if req.Type == "" {
		jobType = domain.JobTypeVideo
	}
	if !jobType.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported generation type")
		return
	}
	if jobType == domain.JobTypeVideo && req.ImageURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_url is required for video generation")
		return
	}

	duration, err := resolveDuration(jobType, req.DurationSeconds)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	effects, err := a.Effects.GetByIDs(r.Context(), req.EffectIDs)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEffect) {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown effect selected")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load effects")
		return
	}

	combined, err := prompt.Combine(req.Prompt, effects)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is empty or too long after combining effects")
		return
	}

	// Quota check runs before any vendor call or record mutation.
	since := midnightUTC(a.now())
	used, err := a.Jobs.CountCreatedSince(r.Context(), userID, since)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	if used >= a.Cfg.DailyJobLimit {
		a.error(w, http.StatusTooManyRequests, "rate_limited",
			fmt.Sprintf("daily generation limit reached (%d/%d)", used, a.Cfg.DailyJobLimit))
		return
	}

	job := &domain.GenerationJob{
		ID:              uuid.NewString(),
		UserID:          userID,
		Type:            jobType,
		Status:          domain.JobStatusPending,
		WebhookStatus:   domain.WebhookPending,
		Prompt:          combined,
		ImageURL:        req.ImageURL,
		DurationSeconds: duration,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	a.Logger.Info().
		Str("job_id", job.ID).
		Str("type", string(jobType)).
		Str("locale", middleware.LocaleFromContext(r.Context())).
		Str("country", middleware.CountryFromContext(r.Context())).
		Msg("generation job submitted")

	accepted, err := a.Vendor.Submit(r.Context(), fal.SubmitRequest{
		Endpoint:   a.endpointFor(jobType),
		Input:      vendorInput(jobType, combined, req.ImageURL, duration),
		WebhookURL: a.webhookURL(job.ID, jobType),
	})
	if err != nil {
		if markErr := a.Jobs.MarkFailed(r.Context(), job.ID, err.Error()); markErr != nil {
			a.Logger.Error().Err(markErr).Str("job_id", job.ID).Msg("failed to record submission failure")
		}
		a.error(w, http.StatusBadGateway, "provider_error", err.Error())
		return
	}

	if err := a.Jobs.AttachRequest(r.Context(), job.ID, accepted.RequestID); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to record vendor acceptance")
		return
	}

	a.json(w, http.StatusAccepted, generateResponse{
		JobID:          job.ID,
		RequestID:      accepted.RequestID,
		Status:         string(domain.JobStatusProcessing),
		RemainingQuota: a.Cfg.DailyJobLimit - used - 1,
	})
}

func (a *App) endpointFor(t domain.JobType) string {
	if t == domain.JobTypeSound {
		return a.Cfg.FalSoundEndpoint
	}
	return a.Cfg.FalVideoEndpoint
}

// webhookURL parameterizes the callback with the local job id and modality so
// the receiver can correlate the delivery without trusting the body alone.
func (a *App) webhookURL(jobID string, t domain.JobType) string {
	params := url.Values{}
	params.Set("jobId", jobID)
	params.Set("type", string(t))
	return a.Cfg.PublicBaseURL + "/webhooks/fal?" + params.Encode()
}

func vendorInput(t domain.JobType, combinedPrompt, imageURL string, duration int) map[string]any {
	if t == domain.JobTypeSound {
		return map[string]any{
			"prompt":   combinedPrompt,
			"duration": duration,
		}
	}
	return map[string]any{
		"prompt":    combinedPrompt,
		"image_url": imageURL,
		"duration":  strconv.Itoa(duration),
	}
}

func resolveDuration(t domain.JobType, requested int) (int, error) {
	min, max, fallback := minVideoDuration, maxVideoDuration, defaultVideoDuration
	if t == domain.JobTypeSound {
		min, max, fallback = minSoundDuration, maxSoundDuration, defaultSoundDuration
	}
	if requested == 0 {
		return fallback, nil
	}
	if requested < min || requested > max {
		return 0, fmt.Errorf("duration_seconds must be between %d and %d for %s", min, max, t)
	}
	return requested, nil
}

func midnightUTC(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
