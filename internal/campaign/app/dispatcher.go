package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/motorlink/golang_services/internal/campaign/adapters/segments"
	"github.com/motorlink/golang_services/internal/campaign/domain"
	"github.com/motorlink/golang_services/internal/campaign/repository"
	"github.com/motorlink/golang_services/internal/contacts"
	deliverydomain "github.com/motorlink/golang_services/internal/delivery/domain"
	"github.com/motorlink/golang_services/internal/delivery/queue"
	"github.com/motorlink/golang_services/internal/media"
)

// Per-channel retry policies applied to every enqueued job.
const (
	emailMaxAttempts    = 3
	emailBackoffBase    = 15 * time.Second
	whatsappMaxAttempts = 3
	whatsappBackoffBase = 30 * time.Second
)

// Body parameter used when a contact has no vehicle of interest.
const fallbackVehicleInterest = "nuestro catálogo de vehículos"

// Addressee used when a contact has no name.
const fallbackRecipientName = "cliente"

// SegmentFetcher resolves a campaign's segment; satisfied by the segments
// HTTP client.
type SegmentFetcher interface {
	GetSegment(ctx context.Context, segmentID, bearerToken string) (*segments.Segment, error)
}

// BrandResolver resolves the tenant display name; satisfied by the tenants
// HTTP client.
type BrandResolver interface {
	DisplayName(ctx context.Context, tenantID string) string
}

// DispatcherConfig carries the engine's tunables.
type DispatcherConfig struct {
	DefaultPhoneRegion string
	// EmailMaxEnqueueRPS throttles how fast email jobs enter the queue
	// (1000ms / RPS sleep between submissions). Delivery-side throughput is
	// the workers' business, not ours.
	EmailMaxEnqueueRPS int
	EmailFrom          string
	ContactLinkBaseURL string
}

// Dispatcher is the campaign dispatch engine. One Dispatch call is one run:
// it resolves the segment, partitions contacts per channel, builds
// personalized jobs, and feeds the delivery queues. It mutates counters and
// enqueues work but performs no network delivery itself.
type Dispatcher struct {
	campaigns    repository.CampaignRepository
	stats        repository.StatsRepository
	suppressions repository.SuppressionRepository
	segments     SegmentFetcher
	brands       BrandResolver
	queue        queue.Queue
	renderer     Renderer
	unsubscribe  *UnsubscribeTokens
	logger       *slog.Logger
	config       DispatcherConfig

	// sleep is the enqueue throttle; replaced in tests.
	sleep func(time.Duration)
}

func NewDispatcher(
	campaigns repository.CampaignRepository,
	stats repository.StatsRepository,
	suppressions repository.SuppressionRepository,
	segmentClient SegmentFetcher,
	brands BrandResolver,
	q queue.Queue,
	renderer Renderer,
	unsub *UnsubscribeTokens,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.EmailMaxEnqueueRPS <= 0 {
		cfg.EmailMaxEnqueueRPS = 10
	}
	return &Dispatcher{
		campaigns:    campaigns,
		stats:        stats,
		suppressions: suppressions,
		segments:     segmentClient,
		brands:       brands,
		queue:        q,
		renderer:     renderer,
		unsubscribe:  unsub,
		logger:       logger.With("service", "campaign_dispatcher"),
		config:       cfg,
		sleep:        time.Sleep,
	}
}

// emailRecipient is an accepted email-channel contact.
type emailRecipient struct {
	address string
	contact contacts.Contact
}

// waRecipient is an accepted WhatsApp-channel contact.
type waRecipient struct {
	number  string
	contact contacts.Contact
}

// runCounters accumulates one run's per-channel outcomes. Only queued and
// skipped are persisted; sent/failed belong to the workers.
type runCounters struct {
	queued  int
	skipped int
}

// Dispatch executes one dispatch run for the campaign. Contact-level
// failures (bad address, duplicate, render or enqueue error) are logged,
// counted, and skipped; only campaign-level failures (unknown campaign,
// segment resolution) propagate. The caller owns the surrounding state
// transitions.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) error {
	c, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	log := d.logger.With("campaign_id", c.ID, "segment_id", c.SegmentID)

	token := ""
	if c.SegmentToken.Valid && c.SegmentToken.String != "" {
		token = c.SegmentToken.String
	} else {
		// Older campaigns were created before tokens were captured; their
		// segments resolve unauthenticated.
		log.WarnContext(ctx, "No stored segment credential; fetching segment unauthenticated")
	}

	fetchStart := time.Now()
	seg, err := d.segments.GetSegment(ctx, c.SegmentID, token)
	if err != nil {
		segmentFetchDurationHist.WithLabelValues("error").Observe(time.Since(fetchStart).Seconds())
		dispatchRunsCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to resolve segment: %w", err)
	}
	segmentFetchDurationHist.WithLabelValues("ok").Observe(time.Since(fetchStart).Seconds())

	channels := domain.NormalizeChannels(c.Channels)
	hasEmail, hasWhatsApp := false, false
	for _, ch := range channels {
		switch ch {
		case domain.ChannelEmail:
			hasEmail = true
		case domain.ChannelWhatsApp:
			hasWhatsApp = true
		}
	}

	loader, err := d.contactSource(c, seg)
	if err != nil {
		dispatchRunsCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to open contact source: %w", err)
	}

	emailBatch, waBatch, emailCount, waCount := d.partitionContacts(ctx, log, loader, hasEmail, hasWhatsApp)

	if len(emailBatch) == 0 && len(waBatch) == 0 {
		log.InfoContext(ctx, "No usable contacts in source; nothing to enqueue",
			"email_skipped", emailCount.skipped, "whatsapp_skipped", waCount.skipped)
		d.persistCounters(ctx, log, c.ID, hasEmail, hasWhatsApp, emailCount, waCount)
		dispatchRunsCounter.WithLabelValues("empty").Inc()
		return nil
	}

	promos := d.buildPromoList(seg, c)
	brand := d.brands.DisplayName(ctx, c.TenantID)

	if hasEmail {
		d.dispatchEmail(ctx, log, c, brand, promos, emailBatch, &emailCount)
	}
	if hasWhatsApp {
		d.dispatchWhatsApp(ctx, log, c, promos, waBatch, &waCount)
	}

	d.persistCounters(ctx, log, c.ID, hasEmail, hasWhatsApp, emailCount, waCount)
	dispatchRunsCounter.WithLabelValues("completed").Inc()

	log.InfoContext(ctx, "Dispatch run finished",
		"email_queued", emailCount.queued, "email_skipped", emailCount.skipped,
		"whatsapp_queued", waCount.queued, "whatsapp_skipped", waCount.skipped)
	return nil
}

// contactSource selects where the run's recipients come from: an uploaded
// spreadsheet when the campaign names one, otherwise the segment's inline
// list.
func (d *Dispatcher) contactSource(c *domain.Campaign, seg *segments.Segment) (contacts.Loader, error) {
	if c.ContactsFile != "" {
		return contacts.NewXLSXLoader(c.ContactsFile)
	}
	return contacts.NewSliceLoader(seg.Clientes), nil
}

// partitionContacts makes the single pass over the contact source. Every
// contact is tried independently against each requested channel: a contact
// usable for one channel but not the other is partially accepted.
func (d *Dispatcher) partitionContacts(ctx context.Context, log *slog.Logger, loader contacts.Loader, hasEmail, hasWhatsApp bool) ([]emailRecipient, []waRecipient, runCounters, runCounters) {
	var (
		emailBatch []emailRecipient
		waBatch    []waRecipient
		emailCount runCounters
		waCount    runCounters
	)
	emailSeen := make(map[string]struct{})
	phoneSeen := make(map[string]struct{})

	for contact, ok := loader.Next(); ok; contact, ok = loader.Next() {
		if hasEmail {
			addr, valid := contact.EmailAddress()
			switch {
			case !valid:
				emailCount.skipped++
				contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "invalid").Inc()
			case d.isSuppressed(ctx, log, addr):
				emailCount.skipped++
				contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "suppressed").Inc()
			default:
				if _, dup := emailSeen[addr]; dup {
					emailCount.skipped++
					contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "duplicate").Inc()
				} else {
					emailSeen[addr] = struct{}{}
					emailBatch = append(emailBatch, emailRecipient{address: addr, contact: contact})
				}
			}
		}

		if hasWhatsApp {
			number, valid := contact.WhatsAppNumber(d.config.DefaultPhoneRegion)
			switch {
			case !valid:
				waCount.skipped++
				contactsProcessedCounter.WithLabelValues(domain.ChannelWhatsApp, "invalid").Inc()
			default:
				if _, dup := phoneSeen[number]; dup {
					waCount.skipped++
					contactsProcessedCounter.WithLabelValues(domain.ChannelWhatsApp, "duplicate").Inc()
				} else {
					phoneSeen[number] = struct{}{}
					waBatch = append(waBatch, waRecipient{number: number, contact: contact})
				}
			}
		}
	}
	if err := loader.Err(); err != nil {
		// Slice loaders cannot fail; spreadsheet sources can. The accepted
		// portion still dispatches.
		log.ErrorContext(ctx, "Contact source ended with error; dispatching accepted portion", "error", err)
	}
	return emailBatch, waBatch, emailCount, waCount
}

func (d *Dispatcher) isSuppressed(ctx context.Context, log *slog.Logger, addr string) bool {
	suppressed, err := d.suppressions.IsSuppressed(ctx, addr)
	if err != nil {
		// A broken suppression check must not block the batch; the recipient
		// can still one-click unsubscribe from the mail itself.
		log.WarnContext(ctx, "Suppression check failed; treating recipient as not suppressed", "error", err)
		return false
	}
	return suppressed
}

// buildPromoList normalizes the segment's promotional media for delivery.
// A URL that cannot be transformed degrades to itself with HTTPS forced; a
// segment without promos falls back to the campaign's single email image.
func (d *Dispatcher) buildPromoList(seg *segments.Segment, c *domain.Campaign) []string {
	var promos []string
	for _, raw := range seg.ImageURLPromo {
		if u := media.TransformDeliveryURL(raw); u != "" {
			promos = append(promos, u)
		}
	}
	if len(promos) == 0 && c.EmailImageURL != "" {
		promos = append(promos, media.TransformDeliveryURL(c.EmailImageURL))
	}
	return promos
}

func (d *Dispatcher) dispatchEmail(ctx context.Context, log *slog.Logger, c *domain.Campaign, brand string, promos []string, batch []emailRecipient, count *runCounters) {
	throttle := time.Second / time.Duration(d.config.EmailMaxEnqueueRPS)

	for i, rcpt := range batch {
		unsubURL, err := d.unsubscribe.URLFor(c.ID, rcpt.address)
		if err != nil {
			count.skipped++
			contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "render_error").Inc()
			log.ErrorContext(ctx, "Failed to build unsubscribe link; contact skipped",
				"recipient", rcpt.address, "error", err)
			continue
		}

		html, text, err := d.renderer.Render(RenderContext{
			RecipientName:  rcpt.contact.DisplayName(fallbackRecipientName),
			BrandName:      brand,
			Subject:        c.EmailSubject,
			PromoImages:    promos,
			Vehicle:        rcpt.contact.VehiculoInteres,
			UnsubscribeURL: unsubURL,
			ContactURL:     d.config.ContactLinkBaseURL,
		})
		if err != nil {
			count.skipped++
			contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "render_error").Inc()
			log.ErrorContext(ctx, "Render failed; contact skipped", "recipient", rcpt.address, "error", err)
			continue
		}

		payload := deliverydomain.JobPayload{
			To:         rcpt.address,
			CampaignID: c.ID,
			From:       d.config.EmailFrom,
			Subject:    c.EmailSubject,
			HTML:       html,
			Text:       text,
			Headers: map[string]string{
				"List-Unsubscribe":      "<" + unsubURL + ">",
				"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
				"X-Campaign-Id":         c.ID.String(),
				"X-Campaign-Name":       c.Name,
			},
		}
		_, err = d.queue.Enqueue(ctx, deliverydomain.ChannelEmail, payload, deliverydomain.EnqueueOptions{
			MaxAttempts: emailMaxAttempts,
			BackoffBase: emailBackoffBase,
		})
		if err != nil {
			count.skipped++
			contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "enqueue_error").Inc()
			log.ErrorContext(ctx, "Enqueue failed; contact skipped", "recipient", rcpt.address, "error", err)
			continue
		}

		count.queued++
		contactsProcessedCounter.WithLabelValues(domain.ChannelEmail, "queued").Inc()

		// Throttles queue growth, not provider throughput. Nothing follows
		// the last submission, so no trailing sleep.
		if i < len(batch)-1 {
			d.sleep(throttle)
		}
	}
}

func (d *Dispatcher) dispatchWhatsApp(ctx context.Context, log *slog.Logger, c *domain.Campaign, promos []string, batch []waRecipient, count *runCounters) {
	headerImage := ""
	if len(promos) > 0 {
		headerImage = promos[0]
	}

	for _, rcpt := range batch {
		vehicle := rcpt.contact.VehiculoInteres
		if vehicle == "" {
			vehicle = fallbackVehicleInterest
		}
		params := []string{rcpt.contact.DisplayName(fallbackRecipientName), vehicle}

		// Templates bind positionally and require the exact declared count;
		// there is no partial binding.
		if c.WAParamCount > 0 && len(params) != c.WAParamCount {
			count.skipped++
			contactsProcessedCounter.WithLabelValues(domain.ChannelWhatsApp, "param_mismatch").Inc()
			log.ErrorContext(ctx, "Template parameter count mismatch; contact skipped",
				"recipient", rcpt.number, "template", c.WATemplateName,
				"expected", c.WAParamCount, "got", len(params))
			continue
		}

		payload := deliverydomain.JobPayload{
			To:             rcpt.number,
			CampaignID:     c.ID,
			TemplateName:   c.WATemplateName,
			LanguageCode:   c.WATemplateLang,
			BodyParams:     params,
			HeaderImageURL: headerImage,
		}
		handle, err := d.queue.Enqueue(ctx, deliverydomain.ChannelWhatsApp, payload, deliverydomain.EnqueueOptions{
			MaxAttempts: whatsappMaxAttempts,
			BackoffBase: whatsappBackoffBase,
			JobKey:      deliverydomain.WhatsAppJobKey(c.ID, rcpt.number, c.WATemplateName),
		})
		if err != nil {
			count.skipped++
			contactsProcessedCounter.WithLabelValues(domain.ChannelWhatsApp, "enqueue_error").Inc()
			log.ErrorContext(ctx, "Enqueue failed; contact skipped", "recipient", rcpt.number, "error", err)
			continue
		}
		if handle.Duplicate {
			count.skipped++
			contactsProcessedCounter.WithLabelValues(domain.ChannelWhatsApp, "duplicate").Inc()
			log.InfoContext(ctx, "Job already queued for recipient and template; skipped",
				"recipient", rcpt.number, "template", c.WATemplateName)
			continue
		}

		count.queued++
		contactsProcessedCounter.WithLabelValues(domain.ChannelWhatsApp, "queued").Inc()
	}
}

// persistCounters writes the run's queued/skipped totals. Best effort: a
// counter write failure is logged and swallowed, never failing a dispatch
// whose jobs are already queued.
func (d *Dispatcher) persistCounters(ctx context.Context, log *slog.Logger, campaignID uuid.UUID, hasEmail, hasWhatsApp bool, emailCount, waCount runCounters) {
	if hasEmail && (emailCount.queued > 0 || emailCount.skipped > 0) {
		if err := d.stats.IncrementCounters(ctx, campaignID, domain.ChannelEmail, emailCount.queued, emailCount.skipped, 0, 0); err != nil {
			log.ErrorContext(ctx, "Failed to persist email counters", "error", err)
		}
	}
	if hasWhatsApp && (waCount.queued > 0 || waCount.skipped > 0) {
		if err := d.stats.IncrementCounters(ctx, campaignID, domain.ChannelWhatsApp, waCount.queued, waCount.skipped, 0, 0); err != nil {
			log.ErrorContext(ctx, "Failed to persist whatsapp counters", "error", err)
		}
	}
}
