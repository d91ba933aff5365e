package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlink/golang_services/internal/delivery/domain"
)

const jobColumns = `id, channel, job_key, campaign_id, payload, status, attempts, max_attempts,
	backoff_base_ms, next_attempt_at, error_message, created_at, updated_at, completed_at`

type PgJobRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgJobRepository(db *pgxpool.Pool, logger *slog.Logger) *PgJobRepository {
	return &PgJobRepository{db: db, logger: logger.With("component", "job_repository")}
}

func (r *PgJobRepository) Insert(ctx context.Context, job *domain.DeliveryJob) (bool, error) {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	// The partial unique index on job_key makes this the idempotency point:
	// a re-submit with the same key inserts nothing.
	query := `
		INSERT INTO delivery_jobs (id, channel, job_key, campaign_id, payload, status, attempts,
			max_attempts, backoff_base_ms, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (job_key) WHERE job_key IS NOT NULL DO NOTHING
	`
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, query,
		job.ID, job.Channel, job.JobKey, job.CampaignID, payloadJSON, job.Status,
		job.Attempts, job.MaxAttempts, job.BackoffBase.Milliseconds(), job.NextAttemptAt, now,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting delivery job", "error", err, "job_id", job.ID, "channel", job.Channel)
		return false, err
	}
	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "Delivery job already exists for key, insert skipped",
			"job_key", job.JobKey.String, "campaign_id", job.CampaignID)
		return false, nil
	}
	return true, nil
}

func (r *PgJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryJob, error) {
	query := `SELECT ` + jobColumns + ` FROM delivery_jobs WHERE id = $1`
	job, err := r.scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting delivery job by ID", "error", err, "job_id", id)
		return nil, err
	}
	return job, nil
}

func (r *PgJobRepository) AcquireDue(ctx context.Context, channel domain.Channel, dueTime time.Time, limit int) ([]*domain.DeliveryJob, error) {
	query := `
		WITH due_job_ids AS (
			SELECT id
			FROM delivery_jobs
			WHERE channel = $1 AND status = $2 AND next_attempt_at <= $3
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE delivery_jobs dj
		SET status = $5, attempts = dj.attempts + 1, updated_at = $6
		FROM due_job_ids d
		WHERE dj.id = d.id
		RETURNING ` + qualifyColumns("dj") + `;
	`
	now := time.Now().UTC()
	rows, err := r.db.Query(ctx, query, channel, domain.StatusQueued, dueTime, limit, domain.StatusInFlight, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error acquiring due delivery jobs", "error", err, "channel", channel)
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.DeliveryJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error scanning acquired delivery job", "error", err)
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating acquired delivery jobs", "error", err)
		return nil, err
	}

	if len(jobs) == 0 {
		return nil, domain.ErrNoDueJobs
	}
	return jobs, nil
}

func (r *PgJobRepository) ClaimByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryJob, error) {
	query := `
		UPDATE delivery_jobs
		SET status = $1, attempts = attempts + 1, updated_at = $2
		WHERE id = $3 AND status = $4 AND next_attempt_at <= $2
		RETURNING ` + jobColumns + `;
	`
	now := time.Now().UTC()
	job, err := r.scanJob(r.db.QueryRow(ctx, query, domain.StatusInFlight, now, id, domain.StatusQueued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already claimed, not yet due, or unknown; the poller owns it.
			return nil, domain.ErrNoDueJobs
		}
		r.logger.ErrorContext(ctx, "Error claiming delivery job", "error", err, "job_id", id)
		return nil, err
	}
	return job, nil
}

func (r *PgJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE delivery_jobs
		SET status = $1, completed_at = $2, updated_at = $2, error_message = NULL
		WHERE id = $3
	`
	return r.execExpectingRow(ctx, query, domain.StatusCompleted, time.Now().UTC(), id)
}

func (r *PgJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE delivery_jobs
		SET status = $1, completed_at = $2, updated_at = $2, error_message = $3
		WHERE id = $4
	`
	return r.execExpectingRow(ctx, query, domain.StatusFailed, time.Now().UTC(), errorMessage, id)
}

func (r *PgJobRepository) MarkForRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, errorMessage string) error {
	query := `
		UPDATE delivery_jobs
		SET status = $1, next_attempt_at = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`
	return r.execExpectingRow(ctx, query, domain.StatusQueued, nextAttemptAt, errorMessage, time.Now().UTC(), id)
}

func (r *PgJobRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE delivery_jobs
		SET status = $1, attempts = GREATEST(attempts - 1, 0), updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return r.execExpectingRow(ctx, query, domain.StatusQueued, time.Now().UTC(), id, domain.StatusInFlight)
}

func (r *PgJobRepository) RequeueStale(ctx context.Context, channel domain.Channel, staleBefore time.Time) (int64, error) {
	query := `
		UPDATE delivery_jobs
		SET status = $1, attempts = GREATEST(attempts - 1, 0), updated_at = $2
		WHERE channel = $3 AND status = $4 AND updated_at < $5
	`
	tag, err := r.db.Exec(ctx, query, domain.StatusQueued, time.Now().UTC(), channel, domain.StatusInFlight, staleBefore)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error requeueing stale delivery jobs", "error", err, "channel", channel)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgJobRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM delivery_jobs
		WHERE status IN ($1, $2) AND updated_at < $3
	`
	tag, err := r.db.Exec(ctx, query, domain.StatusCompleted, domain.StatusFailed, olderThan)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error pruning delivery jobs", "error", err)
		return 0, err
	}
	if tag.RowsAffected() > 0 {
		r.logger.InfoContext(ctx, "Pruned finished delivery jobs", "count", tag.RowsAffected(), "older_than", olderThan)
	}
	return tag.RowsAffected(), nil
}

func (r *PgJobRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating delivery job", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgJobRepository) scanJob(row pgx.Row) (*domain.DeliveryJob, error) {
	job := &domain.DeliveryJob{}
	var payloadJSON []byte
	var backoffMS int64
	if err := row.Scan(
		&job.ID, &job.Channel, &job.JobKey, &job.CampaignID, &payloadJSON, &job.Status,
		&job.Attempts, &job.MaxAttempts, &backoffMS, &job.NextAttemptAt, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	); err != nil {
		return nil, err
	}
	job.BackoffBase = time.Duration(backoffMS) * time.Millisecond
	if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	return job, nil
}

func qualifyColumns(alias string) string {
	return alias + `.id, ` + alias + `.channel, ` + alias + `.job_key, ` + alias + `.campaign_id, ` +
		alias + `.payload, ` + alias + `.status, ` + alias + `.attempts, ` + alias + `.max_attempts, ` +
		alias + `.backoff_base_ms, ` + alias + `.next_attempt_at, ` + alias + `.error_message, ` +
		alias + `.created_at, ` + alias + `.updated_at, ` + alias + `.completed_at`
}
