package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgSuppressionRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgSuppressionRepository(db *pgxpool.Pool, logger *slog.Logger) *PgSuppressionRepository {
	return &PgSuppressionRepository{db: db, logger: logger.With("component", "suppression_repository")}
}

// Add records an unsubscribed email. Re-unsubscribing is a no-op.
func (r *PgSuppressionRepository) Add(ctx context.Context, email string, campaignID uuid.UUID) error {
	query := `
		INSERT INTO unsubscribes (email, campaign_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, email, campaignID, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error recording unsubscribe", "error", err, "campaign_id", campaignID)
		return err
	}
	r.logger.InfoContext(ctx, "Unsubscribe recorded", "campaign_id", campaignID)
	return nil
}

func (r *PgSuppressionRepository) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM unsubscribes WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error checking suppression list", "error", err)
		return false, err
	}
	return exists, nil
}
