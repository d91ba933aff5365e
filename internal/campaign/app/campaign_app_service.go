package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/motorlink/golang_services/internal/campaign/domain"
	"github.com/motorlink/golang_services/internal/campaign/repository"
)

// CreateCampaignParams carries the validated inputs for a new campaign.
type CreateCampaignParams struct {
	Name         string
	TenantID     string
	SegmentID    string
	SegmentToken string
	Channels     []string
	ContactsFile string

	EmailSubject  string
	EmailImageURL string

	WATemplateName string
	WATemplateLang string
	WAParamCount   int
}

// CampaignAppService owns the campaign lifecycle: creation, dispatch
// triggering with its state transitions, re-dispatch, detail reads, and
// unsubscribe handling. Dispatch mechanics live in the Dispatcher; this layer
// adds the state machine and the per-campaign single-flight guard.
type CampaignAppService struct {
	campaigns    repository.CampaignRepository
	stats        repository.StatsRepository
	suppressions repository.SuppressionRepository
	dispatcher   *Dispatcher
	unsubscribe  *UnsubscribeTokens
	logger       *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewCampaignAppService(
	campaigns repository.CampaignRepository,
	stats repository.StatsRepository,
	suppressions repository.SuppressionRepository,
	dispatcher *Dispatcher,
	unsubscribe *UnsubscribeTokens,
	logger *slog.Logger,
) *CampaignAppService {
	return &CampaignAppService{
		campaigns:    campaigns,
		stats:        stats,
		suppressions: suppressions,
		dispatcher:   dispatcher,
		unsubscribe:  unsubscribe,
		logger:       logger.With("service", "campaign_app"),
		inflight:     make(map[uuid.UUID]struct{}),
	}
}

// CreateCampaign persists a new campaign in the created state. Channel names
// are normalized; the segment credential is stored for later replay.
func (s *CampaignAppService) CreateCampaign(ctx context.Context, p CreateCampaignParams) (*domain.Campaign, error) {
	c := domain.NewCampaign(uuid.New(), p.Name, p.TenantID, p.SegmentID, p.Channels)
	if p.SegmentToken != "" {
		c.SegmentToken = sql.NullString{String: p.SegmentToken, Valid: true}
	}
	c.ContactsFile = p.ContactsFile
	c.EmailSubject = p.EmailSubject
	c.EmailImageURL = p.EmailImageURL
	c.WATemplateName = p.WATemplateName
	c.WATemplateLang = p.WATemplateLang
	c.WAParamCount = p.WAParamCount

	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	s.logger.InfoContext(ctx, "Campaign created", "campaign_id", c.ID, "channels", c.Channels)
	return c, nil
}

// Send runs one dispatch for the campaign synchronously, moving it through
// sending to completed or failed. Returns domain.ErrDispatchInProgress when
// another run for the same campaign is active, and
// domain.ErrInvalidTransition when the campaign is not in a sendable state.
func (s *CampaignAppService) Send(ctx context.Context, id uuid.UUID) error {
	c, err := s.begin(ctx, id, false)
	if err != nil {
		return err
	}
	return s.run(ctx, c)
}

// TriggerSend validates and transitions the campaign synchronously, then
// runs the dispatch in the background. Callers get an immediate answer on
// whether the send was accepted; the outcome lands on the campaign row.
func (s *CampaignAppService) TriggerSend(ctx context.Context, id uuid.UUID) error {
	c, err := s.begin(ctx, id, false)
	if err != nil {
		return err
	}
	s.runDetached(c)
	return nil
}

// Resend re-runs dispatch for a campaign. New segment members get messages;
// WhatsApp recipients already queued in a prior run are deduplicated by job
// key, and counters accumulate on top of previous runs. Unlike Send, a
// campaign stuck in sending (a run cut short by process death) is accepted:
// resend is the recovery path for it.
func (s *CampaignAppService) Resend(ctx context.Context, id uuid.UUID) error {
	c, err := s.begin(ctx, id, true)
	if err != nil {
		return err
	}
	return s.run(ctx, c)
}

// TriggerResend is the asynchronous form of Resend.
func (s *CampaignAppService) TriggerResend(ctx context.Context, id uuid.UUID) error {
	c, err := s.begin(ctx, id, true)
	if err != nil {
		return err
	}
	s.runDetached(c)
	return nil
}

func (s *CampaignAppService) runDetached(c *domain.Campaign) {
	go func() {
		// Detached from the request context: an accepted send survives the
		// caller disconnecting.
		if err := s.run(context.Background(), c); err != nil {
			s.logger.Error("Background dispatch failed", "campaign_id", c.ID, "error", err)
		}
	}()
}

// begin acquires the single-flight slot and moves the campaign into sending.
// The slot is taken before the state check so a concurrent send reports as
// in-progress rather than as a bad transition. force skips the state check
// for the resend recovery path; the slot still guards it.
func (s *CampaignAppService) begin(ctx context.Context, id uuid.UUID, force bool) (*domain.Campaign, error) {
	s.mu.Lock()
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return nil, domain.ErrDispatchInProgress
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()

	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		s.release(id)
		return nil, err
	}
	if !force && !c.CanSend() {
		s.release(id)
		return nil, fmt.Errorf("%w: campaign is %s", domain.ErrInvalidTransition, c.Status)
	}

	if err := s.campaigns.UpdateStatus(ctx, id, domain.StatusSending, ""); err != nil {
		s.release(id)
		return nil, fmt.Errorf("failed to mark campaign sending: %w", err)
	}
	return c, nil
}

// run executes the dispatch and records the terminal state. The single-flight
// slot is released whatever the outcome.
func (s *CampaignAppService) run(ctx context.Context, c *domain.Campaign) error {
	defer s.release(c.ID)

	if err := s.dispatcher.Dispatch(ctx, c.ID); err != nil {
		if uerr := s.campaigns.UpdateStatus(ctx, c.ID, domain.StatusFailed, err.Error()); uerr != nil {
			s.logger.ErrorContext(ctx, "Failed to record failed state", "campaign_id", c.ID, "error", uerr)
		}
		return err
	}
	if err := s.campaigns.UpdateStatus(ctx, c.ID, domain.StatusCompleted, ""); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record completed state", "campaign_id", c.ID, "error", err)
		return err
	}
	return nil
}

func (s *CampaignAppService) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// DetailsWithStats returns the campaign row together with its per-channel
// counters. Campaigns that never dispatched have an empty stats slice.
func (s *CampaignAppService) DetailsWithStats(ctx context.Context, id uuid.UUID) (*domain.Campaign, []domain.ChannelStats, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.stats.GetStats(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load campaign stats: %w", err)
	}
	return c, stats, nil
}

// Unsubscribe verifies the signed token and adds its recipient to the
// suppression list. Repeated clicks on the same link are no-ops.
func (s *CampaignAppService) Unsubscribe(ctx context.Context, token string) error {
	email, campaignID, err := s.unsubscribe.Parse(token)
	if err != nil {
		return fmt.Errorf("invalid unsubscribe token: %w", err)
	}
	if err := s.suppressions.Add(ctx, email, campaignID); err != nil {
		return fmt.Errorf("failed to record unsubscribe: %w", err)
	}
	s.logger.InfoContext(ctx, "Recipient unsubscribed", "campaign_id", campaignID)
	return nil
}
