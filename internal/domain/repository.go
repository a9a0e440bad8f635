package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for generation jobs. The job record is
// the only shared mutable resource in the flow; every mutation is a
// single-row update scoped by job id.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	// AttachRequest moves a pending job to processing and stores the
	// vendor-assigned request id alongside the local one.
	AttachRequest(ctx context.Context, jobID, requestID string) error
	// MarkFailed records a submission-time failure before any vendor id exists.
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	// ApplyTerminal writes a terminal outcome. Callers derive the update from
	// vendor-reported truth, so concurrent writers converge on the same values.
	ApplyTerminal(ctx context.Context, jobID string, upd TerminalUpdate) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	GetForUser(ctx context.Context, jobID, userID string) (*GenerationJob, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]GenerationJob, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	// ListStalePending returns accepted jobs whose webhook is still pending
	// and whose creation time predates the cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]GenerationJob, error)
}

// EffectRepository provides read access to the effect library.
type EffectRepository interface {
	List(ctx context.Context) ([]Effect, error)
	GetByIDs(ctx context.Context, ids []string) ([]Effect, error)
}
