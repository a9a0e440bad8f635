package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
)

type stubJobs struct {
	mu          sync.Mutex
	jobs        map[string]*domain.GenerationJob
	stale       []domain.GenerationJob
	applyErr    error
	applyCalls  int
	listErr     error
	lastUpdates map[string]domain.TerminalUpdate
}

func newStubJobs(jobs ...*domain.GenerationJob) *stubJobs {
	s := &stubJobs{jobs: map[string]*domain.GenerationJob{}, lastUpdates: map[string]domain.TerminalUpdate{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubJobs) Create(ctx context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *stubJobs) AttachRequest(ctx context.Context, jobID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[jobID]
	job.Status = domain.JobStatusProcessing
	job.RequestID = requestID
	return nil
}

func (s *stubJobs) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[jobID]
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	return nil
}

func (s *stubJobs) ApplyTerminal(ctx context.Context, jobID string, upd domain.TerminalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.applyErr != nil {
		return s.applyErr
	}
	job := s.jobs[jobID]
	job.Status = upd.Status
	job.WebhookStatus = upd.WebhookStatus
	if upd.ResultURL != "" {
		job.ResultURL = upd.ResultURL
	}
	if upd.ErrorMessage != "" {
		job.ErrorMessage = upd.ErrorMessage
	}
	job.WebhookDeliveredAt = upd.DeliveredAt
	s.lastUpdates[jobID] = upd
	return nil
}

func (s *stubJobs) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *stubJobs) GetForUser(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubJobs) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.GenerationJob, error) {
	return nil, nil
}

func (s *stubJobs) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return 0, nil
}

func (s *stubJobs) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.stale, nil
}

type stubVendor struct {
	mu          sync.Mutex
	status      *fal.StatusResponse
	statusErr   error
	result      *fal.Result
	resultErr   error
	statusCalls int
	resultCalls int
}

func (v *stubVendor) Status(ctx context.Context, endpoint, requestID string) (*fal.StatusResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statusCalls++
	if v.statusErr != nil {
		return nil, v.statusErr
	}
	return v.status, nil
}

func (v *stubVendor) Result(ctx context.Context, endpoint, requestID, responseURL string) (*fal.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resultCalls++
	if v.resultErr != nil {
		return nil, v.resultErr
	}
	return v.result, nil
}

var testEndpoints = map[domain.JobType]string{
	domain.JobTypeVideo: "fal-ai/kling-video",
	domain.JobTypeSound: "fal-ai/mmaudio-v2",
}

func processingJob(age time.Duration) *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:            "job-1",
		UserID:        "user-1",
		Type:          domain.JobTypeVideo,
		Status:        domain.JobStatusProcessing,
		WebhookStatus: domain.WebhookPending,
		RequestID:     "req-1",
		CreatedAt:     time.Now().Add(-age),
	}
}

func newTestReconciler(jobs *stubJobs, vendor *stubVendor) *Reconciler {
	return NewReconciler(jobs, vendor, testEndpoints, 5*time.Minute, zerolog.Nop())
}

func TestCheckBeforeThresholdNoVendorCall(t *testing.T) {
	job := processingJob(time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.Checked {
		t.Fatalf("vendor should not be queried before threshold")
	}
	if vendor.statusCalls != 0 {
		t.Fatalf("status calls = %d, want 0", vendor.statusCalls)
	}
	if jobs.applyCalls != 0 {
		t.Fatalf("no mutation expected, got %d applies", jobs.applyCalls)
	}
}

func TestCheckSkipsTerminalJob(t *testing.T) {
	job := processingJob(10 * time.Minute)
	job.Status = domain.JobStatusCompleted
	job.WebhookStatus = domain.WebhookDelivered
	jobs := newStubJobs(job)
	vendor := &stubVendor{}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.Checked || vendor.statusCalls != 0 {
		t.Fatalf("terminal job must not trigger a vendor call")
	}
}

func TestCheckCompletedViaFallback(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{
		status: &fal.StatusResponse{Status: fal.StatusCompleted, ResponseURL: "https://queue.fal.run/r/req-1"},
		result: &fal.Result{Video: &fal.Media{URL: "https://cdn.fal.media/out.mp4"}},
	}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.Checked || !out.StatusKnown {
		t.Fatalf("outcome = %+v, want checked and known", out)
	}
	if out.Job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", out.Job.Status)
	}
	if out.Job.WebhookStatus != domain.WebhookTimeout {
		t.Fatalf("webhook status = %q, want timeout", out.Job.WebhookStatus)
	}
	if out.Job.ResultURL != "https://cdn.fal.media/out.mp4" {
		t.Fatalf("result url = %q", out.Job.ResultURL)
	}
}

func TestCheckVendorReportedFailure(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{
		status: &fal.StatusResponse{Status: fal.StatusFailed},
		result: &fal.Result{Error: "NSFW content detected"},
	}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.Job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", out.Job.Status)
	}
	if out.Job.WebhookStatus != domain.WebhookTimeout {
		t.Fatalf("webhook status = %q, want timeout", out.Job.WebhookStatus)
	}
	if out.Job.ErrorMessage != "NSFW content detected" {
		t.Fatalf("error message = %q", out.Job.ErrorMessage)
	}
}

func TestCheckTransportErrorLeavesJobUntouched(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{statusErr: errors.New("connection reset")}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check should swallow transport errors, got %v", err)
	}
	if !out.Checked || out.StatusKnown {
		t.Fatalf("outcome = %+v, want checked but unknown", out)
	}
	if jobs.applyCalls != 0 {
		t.Fatalf("transport error must not mutate the job")
	}
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("status = %q, want processing", job.Status)
	}
}

func TestCheckResultFetchErrorLeavesJobUntouched(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{
		status:    &fal.StatusResponse{Status: fal.StatusCompleted},
		resultErr: errors.New("timeout"),
	}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.StatusKnown {
		t.Fatalf("result fetch failure should report status unknown")
	}
	if jobs.applyCalls != 0 {
		t.Fatalf("result fetch failure must not mutate the job")
	}
}

func TestCheckInProgressReportsSubState(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{
		status: &fal.StatusResponse{
			Status:        fal.StatusInQueue,
			QueuePosition: 7,
			Logs:          []fal.LogLine{{Message: "waiting for gpu"}},
		},
	}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.StatusKnown || out.VendorStatus != fal.StatusInQueue || out.QueuePosition != 7 {
		t.Fatalf("outcome = %+v", out)
	}
	if jobs.applyCalls != 0 {
		t.Fatalf("in-progress report must not mutate the job")
	}
}

func TestCheckUpdateFailurePropagates(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	jobs.applyErr = errors.New("db down")
	vendor := &stubVendor{
		status: &fal.StatusResponse{Status: fal.StatusCompleted},
		result: &fal.Result{Video: &fal.Media{URL: "https://cdn.fal.media/out.mp4"}},
	}

	if _, err := newTestReconciler(jobs, vendor).Check(context.Background(), job); err == nil {
		t.Fatalf("expected error when terminal update fails")
	}
}

func TestCheckCompletedWithoutOutputFails(t *testing.T) {
	job := processingJob(6 * time.Minute)
	jobs := newStubJobs(job)
	vendor := &stubVendor{
		status: &fal.StatusResponse{Status: fal.StatusCompleted},
		result: &fal.Result{},
	}

	out, err := newTestReconciler(jobs, vendor).Check(context.Background(), job)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.Job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", out.Job.Status)
	}
	if out.Job.ErrorMessage == "" {
		t.Fatalf("expected an error message for empty completion payload")
	}
}

func TestSweeperReconcilesStaleJobs(t *testing.T) {
	first := processingJob(10 * time.Minute)
	second := processingJob(8 * time.Minute)
	second.ID = "job-2"
	second.RequestID = "req-2"
	jobs := newStubJobs(first, second)
	jobs.stale = []domain.GenerationJob{*first, *second}
	vendor := &stubVendor{
		status: &fal.StatusResponse{Status: fal.StatusCompleted},
		result: &fal.Result{Video: &fal.Media{URL: "https://cdn.fal.media/out.mp4"}},
	}
	rec := newTestReconciler(jobs, vendor)
	sweeper := NewSweeper(jobs, rec, 10, 2, zerolog.Nop())

	if err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for _, id := range []string{"job-1", "job-2"} {
		got, err := jobs.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status != domain.JobStatusCompleted || got.WebhookStatus != domain.WebhookTimeout {
			t.Fatalf("job %s = %q/%q, want completed/timeout", id, got.Status, got.WebhookStatus)
		}
	}
}

func TestSweeperListFailurePropagates(t *testing.T) {
	jobs := newStubJobs()
	jobs.listErr = errors.New("db down")
	sweeper := NewSweeper(jobs, newTestReconciler(jobs, &stubVendor{}), 10, 2, zerolog.Nop())

	if err := sweeper.Run(context.Background()); err == nil {
		t.Fatalf("expected list error to propagate")
	}
}

var _ domain.JobRepository = (*stubJobs)(nil)
var _ VendorQueue = (*stubVendor)(nil)
