package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlink/golang_services/internal/campaign/domain"
)

type PgCampaignRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgCampaignRepository(db *pgxpool.Pool, logger *slog.Logger) *PgCampaignRepository {
	return &PgCampaignRepository{db: db, logger: logger.With("component", "campaign_repository")}
}

func (r *PgCampaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, tenant_id, segment_id, segment_token, channels, contacts_file,
			email_subject, email_image_url, wa_template_name, wa_template_lang, wa_param_count,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.Name, c.TenantID, c.SegmentID, c.SegmentToken, c.Channels, c.ContactsFile,
		c.EmailSubject, c.EmailImageURL, c.WATemplateName, c.WATemplateLang, c.WAParamCount,
		c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating campaign", "error", err, "campaign_id", c.ID)
		return err
	}
	r.logger.InfoContext(ctx, "Campaign created", "campaign_id", c.ID, "channels", c.Channels)
	return nil
}

func (r *PgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `
		SELECT id, name, tenant_id, segment_id, segment_token, channels, contacts_file,
			email_subject, email_image_url, wa_template_name, wa_template_lang, wa_param_count,
			status, last_error, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`
	c := &domain.Campaign{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.TenantID, &c.SegmentID, &c.SegmentToken, &c.Channels, &c.ContactsFile,
		&c.EmailSubject, &c.EmailImageURL, &c.WATemplateName, &c.WATemplateLang, &c.WAParamCount,
		&c.Status, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting campaign by ID", "error", err, "campaign_id", id)
		return nil, err
	}
	return c, nil
}

func (r *PgCampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, lastError string) error {
	query := `
		UPDATE campaigns
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4
	`
	var errField sql.NullString
	if lastError != "" {
		errField = sql.NullString{String: lastError, Valid: true}
	}
	tag, err := r.db.Exec(ctx, query, status, errField, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating campaign status", "error", err, "campaign_id", id, "new_status", status)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Campaign status updated", "campaign_id", id, "new_status", status)
	return nil
}
