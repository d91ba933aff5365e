// Package worker runs the delivery side of the queues: one worker per
// channel pulls jobs, invokes the channel transport under a rate limit, and
// reports outcomes into the campaign counters.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/motorlink/golang_services/internal/delivery/domain"
	"github.com/motorlink/golang_services/internal/delivery/repository"
	"github.com/motorlink/golang_services/internal/delivery/transport"
	"github.com/motorlink/golang_services/internal/platform/messagebroker"
)

// DeliveryReporter receives per-campaign delivery outcomes. Satisfied by the
// campaign stats repository.
type DeliveryReporter interface {
	IncrementCounters(ctx context.Context, campaignID uuid.UUID, channel string, queued, skipped, sent, failed int) error
}

// Config holds per-worker tuning.
type Config struct {
	// MaxPerSecond caps transport submissions per rolling one-second window.
	MaxPerSecond int
	// PollInterval drives the fallback poll that catches delayed jobs,
	// retries, and missed notifies.
	PollInterval time.Duration
	// JobBatchSize bounds how many due jobs one poll cycle claims.
	JobBatchSize int
	// SendTimeout bounds a single transport call.
	SendTimeout time.Duration
	// LeaseTimeout is how long a job may sit in_flight before the reaper
	// treats its worker as dead and requeues it. Must comfortably exceed the
	// longest a live worker can hold a claim: a full poll batch of rate
	// waits plus send timeouts.
	LeaseTimeout time.Duration
}

// outcomeWriteTimeout bounds the store writes that record a job's fate.
const outcomeWriteTimeout = 10 * time.Second

// outcomeContext builds a context for job state writes. The worker context
// may already be cancelled by shutdown; a write riding it would never land
// and the job would sit in_flight until the reaper found it.
func outcomeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), outcomeWriteTimeout)
}

// Worker processes the delivery queue of a single channel, one job at a time.
type Worker struct {
	channel  domain.Channel
	repo     repository.JobRepository
	reporter DeliveryReporter
	email    transport.EmailTransport
	whatsapp transport.WhatsAppTransport
	broker   *messagebroker.NatsClient
	logger   *slog.Logger
	config   Config
	rate     *rateWindow

	// mu serializes job processing between the notify and poll paths;
	// worker concurrency is deliberately 1.
	mu  sync.Mutex
	sub *nats.Subscription
}

// NewEmailWorker builds a worker for the email channel.
func NewEmailWorker(repo repository.JobRepository, reporter DeliveryReporter, t transport.EmailTransport,
	broker *messagebroker.NatsClient, logger *slog.Logger, cfg Config) *Worker {
	w := newWorker(domain.ChannelEmail, repo, reporter, broker, logger, cfg)
	w.email = t
	return w
}

// NewWhatsAppWorker builds a worker for the WhatsApp channel.
func NewWhatsAppWorker(repo repository.JobRepository, reporter DeliveryReporter, t transport.WhatsAppTransport,
	broker *messagebroker.NatsClient, logger *slog.Logger, cfg Config) *Worker {
	w := newWorker(domain.ChannelWhatsApp, repo, reporter, broker, logger, cfg)
	w.whatsapp = t
	return w
}

func newWorker(ch domain.Channel, repo repository.JobRepository, reporter DeliveryReporter,
	broker *messagebroker.NatsClient, logger *slog.Logger, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobBatchSize <= 0 {
		cfg.JobBatchSize = 20
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 15 * time.Minute
	}
	// A lease shorter than a worst-case poll batch would let the reaper
	// steal jobs a live worker still holds.
	if floor := time.Duration(cfg.JobBatchSize)*cfg.SendTimeout + time.Minute; cfg.LeaseTimeout < floor {
		cfg.LeaseTimeout = floor
	}
	return &Worker{
		channel:  ch,
		repo:     repo,
		reporter: reporter,
		broker:   broker,
		logger:   logger.With("component", "delivery_worker", "channel", ch),
		config:   cfg,
		rate:     newRateWindow(cfg.MaxPerSecond),
	}
}

// Start subscribes to the channel's notify subject and runs the poll loop
// until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w.broker != nil {
		sub, err := w.broker.Subscribe(ctx, domain.JobSubject(w.channel), string(w.channel)+"_delivery_workers", func(msg *nats.Msg) {
			w.handleNotify(ctx, msg)
		})
		if err != nil {
			return fmt.Errorf("failed to start %s worker consumer: %w", w.channel, err)
		}
		w.sub = sub
	}

	go w.pollLoop(ctx)
	w.logger.Info("Delivery worker started",
		"max_per_second", w.config.MaxPerSecond, "poll_interval", w.config.PollInterval)
	return nil
}

// Stop unsubscribes from the notify subject. In-flight work finishes on its
// own; durable jobs survive regardless.
func (w *Worker) Stop() {
	if w.sub != nil {
		if err := w.sub.Unsubscribe(); err != nil {
			w.logger.Warn("Failed to unsubscribe delivery worker", "error", err)
		}
		w.sub = nil
	}
}

// handleNotify is the fast path: a freshly enqueued job id arrives over NATS
// and we try to claim it directly.
func (w *Worker) handleNotify(ctx context.Context, msg *nats.Msg) {
	jobID, err := uuid.Parse(string(msg.Data))
	if err != nil {
		w.logger.Error("Discarding malformed job notify", "error", err, "data", string(msg.Data))
		return
	}

	job, err := w.repo.ClaimByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNoDueJobs) {
			return // another worker won the claim, or the job is delayed
		}
		w.logger.ErrorContext(ctx, "Failed to claim notified job", "error", err, "job_id", jobID)
		return
	}
	w.process(ctx, job)
}

// pollLoop is the catch-all path: delayed jobs, scheduled retries, and any
// notify lost while the worker was down.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reapStale(ctx)
			jobs, err := w.repo.AcquireDue(ctx, w.channel, time.Now().UTC(), w.config.JobBatchSize)
			if err != nil {
				if !errors.Is(err, domain.ErrNoDueJobs) {
					w.logger.ErrorContext(ctx, "Failed to acquire due jobs", "error", err)
				}
				continue
			}
			for _, job := range jobs {
				w.process(ctx, job)
			}
		}
	}
}

// process delivers one claimed job and records the outcome. The job arrives
// already in_flight with its attempt count incremented.
func (w *Worker) process(ctx context.Context, job *domain.DeliveryJob) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waitTimer := prometheus.NewTimer(rateLimitWaitHist.WithLabelValues(string(w.channel)))
	if err := w.rate.Wait(ctx); err != nil {
		waitTimer.ObserveDuration()
		// Shutdown mid-wait: give the job back with its attempt refunded.
		writeCtx, cancelWrite := outcomeContext()
		defer cancelWrite()
		if relErr := w.repo.Release(writeCtx, job.ID); relErr != nil {
			w.logger.Error("Failed to release job on shutdown", "error", relErr, "job_id", job.ID)
		}
		return
	}
	waitTimer.ObserveDuration()

	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	defer cancel()

	sendErr := w.send(sendCtx, job)

	// From here on the outcome must reach the store even if ctx was
	// cancelled while the send ran.
	writeCtx, cancelWrite := outcomeContext()
	defer cancelWrite()

	if sendErr == nil {
		if err := w.repo.MarkCompleted(writeCtx, job.ID); err != nil {
			w.logger.Error("Failed to mark job completed", "error", err, "job_id", job.ID)
		}
		w.report(writeCtx, job, 1, 0)
		jobsProcessedCounter.WithLabelValues(string(w.channel), "sent").Inc()
		w.logger.Info("Delivery job sent",
			"job_id", job.ID, "campaign_id", job.CampaignID, "recipient", job.Payload.To, "attempt", job.Attempts)
		return
	}

	if IsTransient(sendErr) && job.Attempts < job.MaxAttempts {
		next := time.Now().UTC().Add(BackoffDelay(job.BackoffBase, job.Attempts))
		if err := w.repo.MarkForRetry(writeCtx, job.ID, next, sendErr.Error()); err != nil {
			w.logger.Error("Failed to mark job for retry", "error", err, "job_id", job.ID)
		}
		jobsProcessedCounter.WithLabelValues(string(w.channel), "retried").Inc()
		w.logger.Warn("Delivery job failed, retry scheduled",
			"job_id", job.ID, "campaign_id", job.CampaignID, "recipient", job.Payload.To,
			"attempt", job.Attempts, "max_attempts", job.MaxAttempts, "next_attempt_at", next, "error", sendErr)
		return
	}

	if err := w.repo.MarkFailed(writeCtx, job.ID, sendErr.Error()); err != nil {
		w.logger.Error("Failed to mark job failed", "error", err, "job_id", job.ID)
	}
	w.report(writeCtx, job, 0, 1)
	jobsProcessedCounter.WithLabelValues(string(w.channel), "failed").Inc()
	w.logger.Error("Delivery job permanently failed",
		"job_id", job.ID, "campaign_id", job.CampaignID, "recipient", job.Payload.To,
		"attempt", job.Attempts, "error", sendErr)
}

// reapStale requeues jobs stranded in_flight past the lease window. That
// state means a worker claimed them and died before writing an outcome.
func (w *Worker) reapStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.config.LeaseTimeout)
	n, err := w.repo.RequeueStale(ctx, w.channel, cutoff)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to requeue stale in-flight jobs", "error", err)
		return
	}
	if n > 0 {
		staleJobsRequeuedCounter.WithLabelValues(string(w.channel)).Add(float64(n))
		w.logger.WarnContext(ctx, "Requeued stale in-flight jobs",
			"count", n, "lease_timeout", w.config.LeaseTimeout)
	}
}

func (w *Worker) send(ctx context.Context, job *domain.DeliveryJob) error {
	switch w.channel {
	case domain.ChannelEmail:
		timer := prometheus.NewTimer(sendDurationHist.WithLabelValues(string(w.channel), w.email.GetName()))
		defer timer.ObserveDuration()
		_, err := w.email.Send(ctx, transport.EmailMessage{
			To:      job.Payload.To,
			From:    job.Payload.From,
			Subject: job.Payload.Subject,
			HTML:    job.Payload.HTML,
			Text:    job.Payload.Text,
			Headers: job.Payload.Headers,
		})
		return err
	case domain.ChannelWhatsApp:
		timer := prometheus.NewTimer(sendDurationHist.WithLabelValues(string(w.channel), w.whatsapp.GetName()))
		defer timer.ObserveDuration()
		_, err := w.whatsapp.SendTemplate(ctx, transport.TemplateMessage{
			To:             job.Payload.To,
			TemplateName:   job.Payload.TemplateName,
			LanguageCode:   job.Payload.LanguageCode,
			BodyParams:     job.Payload.BodyParams,
			HeaderImageURL: job.Payload.HeaderImageURL,
		})
		return err
	default:
		return fmt.Errorf("%w: unknown channel %q", transport.ErrValidation, w.channel)
	}
}

func (w *Worker) report(ctx context.Context, job *domain.DeliveryJob, sent, failed int) {
	if w.reporter == nil {
		return
	}
	if err := w.reporter.IncrementCounters(ctx, job.CampaignID, string(w.channel), 0, 0, sent, failed); err != nil {
		// Counter persistence is best effort; the job outcome already stands.
		w.logger.WarnContext(ctx, "Failed to persist campaign delivery counters",
			"error", err, "campaign_id", job.CampaignID)
	}
}
