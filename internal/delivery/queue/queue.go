// Package queue exposes the durable per-channel delivery queues to the
// dispatch engine. Jobs are persisted first (the commit point) and a NATS
// notify wakes the channel workers; a lost notify only delays a job until the
// workers' next poll, it never loses it.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/motorlink/golang_services/internal/delivery/domain"
	"github.com/motorlink/golang_services/internal/delivery/repository"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 30 * time.Second
)

// Queue accepts delivery jobs for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, channel domain.Channel, payload domain.JobPayload, opts domain.EnqueueOptions) (*domain.JobHandle, error)
}

// Notifier is the wake-up side of the queue; satisfied by the platform NATS
// client.
type Notifier interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type DurableQueue struct {
	repo     repository.JobRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewDurableQueue(repo repository.JobRepository, notifier Notifier, logger *slog.Logger) *DurableQueue {
	return &DurableQueue{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With("component", "delivery_queue"),
	}
}

// Enqueue registers one job on the channel's queue. The call either fully
// registers the job or fails visibly; a duplicate job key reports success
// with Duplicate set and creates nothing.
func (q *DurableQueue) Enqueue(ctx context.Context, channel domain.Channel, payload domain.JobPayload, opts domain.EnqueueOptions) (*domain.JobHandle, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}

	now := time.Now().UTC()
	job := &domain.DeliveryJob{
		ID:            uuid.New(),
		Channel:       channel,
		CampaignID:    payload.CampaignID,
		Payload:       payload,
		Status:        domain.StatusQueued,
		MaxAttempts:   opts.MaxAttempts,
		BackoffBase:   opts.BackoffBase,
		NextAttemptAt: now.Add(opts.Delay),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.JobKey != "" {
		job.JobKey.String = opts.JobKey
		job.JobKey.Valid = true
	}

	inserted, err := q.repo.Insert(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", channel, err)
	}
	if !inserted {
		return &domain.JobHandle{Duplicate: true}, nil
	}

	// Skip the notify for delayed jobs; they are not claimable yet and the
	// worker poll will pick them up once due. A nil notifier (broker down at
	// startup) leaves jobs to the poll path entirely.
	if q.notifier != nil && opts.Delay <= 0 {
		if err := q.notifier.Publish(ctx, domain.JobSubject(channel), []byte(job.ID.String())); err != nil {
			q.logger.WarnContext(ctx, "Failed to notify workers of new job; poller will pick it up",
				"error", err, "job_id", job.ID, "channel", channel)
		}
	}

	q.logger.DebugContext(ctx, "Delivery job enqueued",
		"job_id", job.ID, "channel", channel, "campaign_id", payload.CampaignID, "delay", opts.Delay)
	return &domain.JobHandle{ID: job.ID}, nil
}
