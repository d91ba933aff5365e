package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/motorlink/golang_services/internal/campaign/domain"
)

// CampaignRepository persists campaigns and their lifecycle state.
type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)

	// UpdateStatus moves the campaign to status and records lastError
	// (empty string clears it). Returns domain.ErrNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, lastError string) error
}

// StatsRepository persists the per-channel campaign counters. Counters only
// ever grow; increments from separate dispatch runs accumulate.
type StatsRepository interface {
	IncrementCounters(ctx context.Context, campaignID uuid.UUID, channel string, queued, skipped, sent, failed int) error
	GetStats(ctx context.Context, campaignID uuid.UUID) ([]domain.ChannelStats, error)
}

// SuppressionRepository records recipients who unsubscribed from email.
type SuppressionRepository interface {
	Add(ctx context.Context, email string, campaignID uuid.UUID) error
	IsSuppressed(ctx context.Context, email string) (bool, error)
}
