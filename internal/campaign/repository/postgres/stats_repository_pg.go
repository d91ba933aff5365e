package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlink/golang_services/internal/campaign/domain"
)

type PgStatsRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgStatsRepository(db *pgxpool.Pool, logger *slog.Logger) *PgStatsRepository {
	return &PgStatsRepository{db: db, logger: logger.With("component", "campaign_stats_repository")}
}

// IncrementCounters adds the deltas to the campaign's channel counters,
// creating the row on first touch. Counters never decrease.
func (r *PgStatsRepository) IncrementCounters(ctx context.Context, campaignID uuid.UUID, channel string, queued, skipped, sent, failed int) error {
	query := `
		INSERT INTO campaign_channel_stats (campaign_id, channel, queued, skipped, sent, failed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (campaign_id, channel) DO UPDATE
		SET queued  = campaign_channel_stats.queued  + EXCLUDED.queued,
		    skipped = campaign_channel_stats.skipped + EXCLUDED.skipped,
		    sent    = campaign_channel_stats.sent    + EXCLUDED.sent,
		    failed  = campaign_channel_stats.failed  + EXCLUDED.failed,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, campaignID, channel, queued, skipped, sent, failed, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error incrementing campaign counters",
			"error", err, "campaign_id", campaignID, "channel", channel)
		return err
	}
	return nil
}

func (r *PgStatsRepository) GetStats(ctx context.Context, campaignID uuid.UUID) ([]domain.ChannelStats, error) {
	query := `
		SELECT campaign_id, channel, queued, skipped, sent, failed
		FROM campaign_channel_stats
		WHERE campaign_id = $1
		ORDER BY channel
	`
	rows, err := r.db.Query(ctx, query, campaignID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying campaign stats", "error", err, "campaign_id", campaignID)
		return nil, err
	}
	defer rows.Close()

	var stats []domain.ChannelStats
	for rows.Next() {
		var s domain.ChannelStats
		if err := rows.Scan(&s.CampaignID, &s.Channel, &s.Queued, &s.Skipped, &s.Sent, &s.Failed); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
