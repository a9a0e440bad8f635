package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
)

// VendorQueue is the slice of the fal client the reconciler needs.
type VendorQueue interface {
	Status(ctx context.Context, endpoint, requestID string) (*fal.StatusResponse, error)
	Result(ctx context.Context, endpoint, requestID, responseURL string) (*fal.Result, error)
}

// Outcome reports what a reconciliation check observed and did.
type Outcome struct {
	Job           *domain.GenerationJob
	Elapsed       time.Duration
	Checked       bool // the vendor status API was queried
	StatusKnown   bool // the vendor answered; false means "status unknown"
	VendorStatus  fal.QueueStatus
	QueuePosition int
	Logs          []fal.LogLine
}

// Reconciler compensates for delayed or missing webhook deliveries by
// querying the vendor's status API directly once a job has waited past the
// threshold. It never fails a job because of its own transport errors; only a
// vendor-reported terminal failure does that.
type Reconciler struct {
	jobs      domain.JobRepository
	vendor    VendorQueue
	endpoints map[domain.JobType]string
	threshold time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReconciler wires a reconciler over the job store and vendor queue.
func NewReconciler(jobs domain.JobRepository, vendor VendorQueue, endpoints map[domain.JobType]string, threshold time.Duration, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		jobs:      jobs,
		vendor:    vendor,
		endpoints: endpoints,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Threshold returns the configured webhook wait threshold.
func (r *Reconciler) Threshold() time.Duration {
	return r.threshold
}

// Check runs one reconciliation pass for a job. Before the threshold elapses,
// or once the job is terminal, it performs no vendor call and no mutation.
// The webhook receiver may race this method; both writers converge on the
// vendor's reported truth, so the update is applied unconditionally by job id.
func (r *Reconciler) Check(ctx context.Context, job *domain.GenerationJob) (*Outcome, error) {
	out := &Outcome{Job: job, Elapsed: r.now().Sub(job.CreatedAt)}

	if job.Status.Terminal() || job.WebhookStatus != domain.WebhookPending {
		return out, nil
	}
	if out.Elapsed < r.threshold {
		return out, nil
	}
	if job.RequestID == "" {
		// The vendor never accepted this job; there is nothing to query.
		return out, nil
	}

	endpoint := r.endpoints[job.Type]
	out.Checked = true

	st, err := r.vendor.Status(ctx, endpoint, job.RequestID)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("vendor status query failed; leaving job untouched")
		return out, nil
	}
	out.StatusKnown = true
	out.VendorStatus = st.Status
	out.QueuePosition = st.QueuePosition
	out.Logs = st.Logs

	switch st.Status {
	case fal.StatusCompleted:
		res, err := r.vendor.Result(ctx, endpoint, job.RequestID, st.ResponseURL)
		if err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("vendor result fetch failed; leaving job untouched")
			out.StatusKnown = false
			return out, nil
		}
		upd := domain.TerminalUpdate{WebhookStatus: domain.WebhookTimeout}
		switch {
		case res.Error != "":
			upd.Status = domain.JobStatusFailed
			upd.ErrorMessage = res.Error
		case res.OutputURL() != "":
			upd.Status = domain.JobStatusCompleted
			upd.ResultURL = res.OutputURL()
		default:
			upd.Status = domain.JobStatusFailed
			upd.ErrorMessage = "vendor completed without output"
		}
		return r.apply(ctx, out, upd)

	case fal.StatusFailed:
		message := "generation failed"
		if res, err := r.vendor.Result(ctx, endpoint, job.RequestID, st.ResponseURL); err == nil && res.Error != "" {
			message = res.Error
		}
		return r.apply(ctx, out, domain.TerminalUpdate{
			Status:        domain.JobStatusFailed,
			WebhookStatus: domain.WebhookTimeout,
			ErrorMessage:  message,
		})
	}

	// Still queued or running; report the vendor's sub-state without mutating.
	return out, nil
}

func (r *Reconciler) apply(ctx context.Context, out *Outcome, upd domain.TerminalUpdate) (*Outcome, error) {
	if err := r.jobs.ApplyTerminal(ctx, out.Job.ID, upd); err != nil {
		return out, fmt.Errorf("apply terminal state: %w", err)
	}
	r.logger.Info().
		Str("job_id", out.Job.ID).
		Str("status", string(upd.Status)).
		Msg("job resolved via timeout reconciliation")

	if refreshed, err := r.jobs.GetByID(ctx, out.Job.ID); err == nil {
		out.Job = refreshed
	} else {
		updated := *out.Job
		updated.Status = upd.Status
		updated.WebhookStatus = upd.WebhookStatus
		updated.ResultURL = upd.ResultURL
		updated.ErrorMessage = upd.ErrorMessage
		out.Job = &updated
	}
	return out, nil
}
