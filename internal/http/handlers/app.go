package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/infra"
	"github.com/srlee0408/voguedrop-sub005/internal/middleware"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
	"github.com/srlee0408/voguedrop-sub005/internal/reconcile"
)

// VendorQueue is the slice of the fal client the submission handler needs.
type VendorQueue interface {
	Submit(ctx context.Context, req fal.SubmitRequest) (*fal.SubmitResponse, error)
}

// App bundles handler dependencies.
type App struct {
	Cfg        *infra.Config
	Logger     zerolog.Logger
	Jobs       domain.JobRepository
	Effects    domain.EffectRepository
	Vendor     VendorQueue
	Reconciler *reconcile.Reconciler

	now func() time.Time
}

// NewApp builds the handler container.
func NewApp(cfg *infra.Config, logger zerolog.Logger, jobs domain.JobRepository, effects domain.EffectRepository, vendor VendorQueue, reconciler *reconcile.Reconciler) *App {
	return &App{
		Cfg:        cfg,
		Logger:     logger,
		Jobs:       jobs,
		Effects:    effects,
		Vendor:     vendor,
		Reconciler: reconciler,
		now:        time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

type jobView struct {
	ID                 string     `json:"id"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	WebhookStatus      string     `json:"webhook_status"`
	RequestID          string     `json:"request_id,omitempty"`
	Prompt             string     `json:"prompt"`
	ImageURL           string     `json:"image_url,omitempty"`
	DurationSeconds    int        `json:"duration_seconds,omitempty"`
	ResultURL          string     `json:"result_url,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	WebhookDeliveredAt *time.Time `json:"webhook_delivered_at,omitempty"`
}

func viewOf(job *domain.GenerationJob) jobView {
	return jobView{
		ID:                 job.ID,
		Type:               string(job.Type),
		Status:             string(job.Status),
		WebhookStatus:      string(job.WebhookStatus),
		RequestID:          job.RequestID,
		Prompt:             job.Prompt,
		ImageURL:           job.ImageURL,
		DurationSeconds:    job.DurationSeconds,
		ResultURL:          job.ResultURL,
		ErrorMessage:       job.ErrorMessage,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
		WebhookDeliveredAt: job.WebhookDeliveredAt,
	}
}
