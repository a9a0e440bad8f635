package domain

import "time"

// JobType discriminates generation modalities.
type JobType string

const (
	JobTypeVideo JobType = "video"
	JobTypeSound JobType = "sound"
)

// Valid reports whether the type names a supported modality.
func (t JobType) Valid() bool {
	return t == JobTypeVideo || t == JobTypeSound
}

// JobStatus enumerates job lifecycle states. Status only moves
// pending -> processing -> {completed, failed}; no regressions.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// WebhookStatus records how the vendor callback channel resolved for a job.
// "timeout" marks a job whose terminal state was recovered by reconciliation
// rather than webhook delivery.
type WebhookStatus string

const (
	WebhookPending   WebhookStatus = "pending"
	WebhookDelivered WebhookStatus = "delivered"
	WebhookTimeout   WebhookStatus = "timeout"
	WebhookFailed    WebhookStatus = "failed"
)

// GenerationJob encapsulates one requested AI transformation from submission
// through the race between webhook delivery and timeout reconciliation.
type GenerationJob struct {
	ID                 string
	UserID             string
	Type               JobType
	Status             JobStatus
	WebhookStatus      WebhookStatus
	RequestID          string // vendor-assigned; empty until the queue accepts
	Prompt             string
	ImageURL           string
	DurationSeconds    int
	ResultURL          string
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	WebhookDeliveredAt *time.Time
}

// TerminalUpdate carries the outcome applied by either terminal writer
// (webhook receiver or reconciler). Both derive their values from the same
// vendor-reported truth, so re-applying the same update is a no-op.
type TerminalUpdate struct {
	Status        JobStatus
	WebhookStatus WebhookStatus
	ResultURL     string
	ErrorMessage  string
	DeliveredAt   *time.Time
}
