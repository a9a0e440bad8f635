package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/infra"
	"github.com/srlee0408/voguedrop-sub005/internal/middleware"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
	"github.com/srlee0408/voguedrop-sub005/internal/reconcile"
)

type stubStore struct {
	mu        sync.Mutex
	jobs      map[string]*domain.GenerationJob
	order     []string
	effects   map[string]domain.Effect
	createErr error
	applyErr  error
	countErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		jobs:    map[string]*domain.GenerationJob{},
		effects: map[string]domain.Effect{},
	}
}

func (s *stubStore) Create(ctx context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	stored := *job
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.jobs[job.ID] = &stored
	s.order = append(s.order, job.ID)
	return nil
}

func (s *stubStore) AttachRequest(ctx context.Context, jobID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusProcessing
	job.RequestID = requestID
	return nil
}

func (s *stubStore) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	return nil
}

func (s *stubStore) ApplyTerminal(ctx context.Context, jobID string, upd domain.TerminalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = upd.Status
	job.WebhookStatus = upd.WebhookStatus
	if upd.ResultURL != "" {
		job.ResultURL = upd.ResultURL
	}
	if upd.ErrorMessage != "" {
		job.ErrorMessage = upd.ErrorMessage
	}
	if upd.DeliveredAt != nil {
		job.WebhookDeliveredAt = upd.DeliveredAt
	}
	return nil
}

func (s *stubStore) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *stubStore) GetForUser(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []domain.GenerationJob
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if job.UserID == userID {
			owned = append(owned, *job)
		}
	}
	if offset >= len(owned) {
		return nil, nil
	}
	owned = owned[offset:]
	if len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *stubStore) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	count := 0
	for _, job := range s.jobs {
		if job.UserID == userID && !job.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *stubStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	return nil, nil
}

func (s *stubStore) List(ctx context.Context) ([]domain.Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var effects []domain.Effect
	for _, e := range s.effects {
		effects = append(effects, e)
	}
	return effects, nil
}

func (s *stubStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var effects []domain.Effect
	for _, id := range ids {
		e, ok := s.effects[id]
		if !ok {
			return nil, domain.ErrUnknownEffect
		}
		effects = append(effects, e)
	}
	return effects, nil
}

type stubQueue struct {
	mu          sync.Mutex
	submitResp  *fal.SubmitResponse
	submitErr   error
	lastSubmit  fal.SubmitRequest
	submitCalls int
	status      *fal.StatusResponse
	statusErr   error
	result      *fal.Result
}

func (q *stubQueue) Submit(ctx context.Context, req fal.SubmitRequest) (*fal.SubmitResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitCalls++
	q.lastSubmit = req
	if q.submitErr != nil {
		return nil, q.submitErr
	}
	if q.submitResp != nil {
		return q.submitResp, nil
	}
	return &fal.SubmitResponse{RequestID: "req-1", Status: fal.StatusInQueue}, nil
}

func (q *stubQueue) Status(ctx context.Context, endpoint, requestID string) (*fal.StatusResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.statusErr != nil {
		return nil, q.statusErr
	}
	return q.status, nil
}

func (q *stubQueue) Result(ctx context.Context, endpoint, requestID, responseURL string) (*fal.Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result, nil
}

func testConfig() *infra.Config {
	return &infra.Config{
		AppEnv:            "test",
		JWTSecret:         "test-secret",
		PublicBaseURL:     "https://api.voguedrop.app",
		FalVideoEndpoint:  "fal-ai/kling-video/v1.6/standard/image-to-video",
		FalSoundEndpoint:  "fal-ai/mmaudio-v2/text-to-audio",
		FalWebhookSecret:  "webhook-secret",
		WebhookVerifyMode: infra.WebhookVerifyStrict,
		WebhookTimeout:    5 * time.Minute,
		DailyJobLimit:     5,
	}
}

func newTestApp(t *testing.T, store *stubStore, queue *stubQueue) *App {
	t.Helper()
	cfg := testConfig()
	endpoints := map[domain.JobType]string{
		domain.JobTypeVideo: cfg.FalVideoEndpoint,
		domain.JobTypeSound: cfg.FalSoundEndpoint,
	}
	reconciler := reconcile.NewReconciler(store, queue, endpoints, cfg.WebhookTimeout, zerolog.Nop())
	return NewApp(cfg, zerolog.Nop(), store, store, queue, reconciler)
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

var _ domain.JobRepository = (*stubStore)(nil)
var _ domain.EffectRepository = (*stubStore)(nil)
var _ VendorQueue = (*stubQueue)(nil)
var _ reconcile.VendorQueue = (*stubQueue)(nil)
