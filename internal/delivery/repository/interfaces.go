package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/motorlink/golang_services/internal/delivery/domain"
)

// JobRepository is the durable store behind the per-channel delivery queues.
type JobRepository interface {
	// Insert persists a new job. When the job carries a key that already
	// exists, nothing is written and inserted is false.
	Insert(ctx context.Context, job *domain.DeliveryJob) (inserted bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryJob, error)

	// AcquireDue atomically claims up to limit eligible jobs of one channel
	// (queued, next_attempt_at <= dueTime), moving them to in_flight and
	// incrementing their attempt count. Claimed jobs are invisible to other
	// workers. Returns domain.ErrNoDueJobs when nothing is eligible.
	AcquireDue(ctx context.Context, channel domain.Channel, dueTime time.Time, limit int) ([]*domain.DeliveryJob, error)

	// ClaimByID is the notify fast path: claim one specific job if it is due.
	// Returns domain.ErrNoDueJobs when the job is not currently claimable.
	ClaimByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryJob, error)

	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// MarkForRetry returns an in-flight job to the queue with a new
	// eligibility time.
	MarkForRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, errorMessage string) error

	// Release puts a claimed job back in the queue untouched, refunding the
	// attempt the claim charged. Used when a worker gives a job back without
	// having tried it.
	Release(ctx context.Context, id uuid.UUID) error

	// RequeueStale returns in-flight jobs of one channel whose claim is older
	// than staleBefore to the queue, refunding the claim's attempt. Recovers
	// jobs stranded by a worker process that died between claim and outcome
	// write. Returns the number of jobs requeued.
	RequeueStale(ctx context.Context, channel domain.Channel, staleBefore time.Time) (int64, error)

	// Prune deletes completed and failed jobs older than olderThan, bounding
	// storage growth. Returns the number of rows removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
