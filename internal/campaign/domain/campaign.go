package domain

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	StatusCreated   CampaignStatus = "created"
	StatusSending   CampaignStatus = "sending"   // A dispatch run is in progress
	StatusCompleted CampaignStatus = "completed" // Last dispatch run resolved
	StatusFailed    CampaignStatus = "failed"    // Last dispatch run aborted
)

// Channel names as stored on the campaign row. Always lowercase-trimmed.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Campaign is one unit of outbound work against a customer segment.
type Campaign struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	TenantID  string    `json:"tenant_id"`
	SegmentID string    `json:"segment_id"`
	// SegmentToken is the bearer credential captured at creation time and
	// replayed on segment retrieval. Absent tokens are tolerated (the fetch
	// proceeds unauthenticated with a warning).
	SegmentToken sql.NullString `json:"-"`

	Channels []string `json:"channels"`

	// ContactsFile optionally names an uploaded .xlsx contact source. When
	// set, recipients come from the spreadsheet instead of the segment's
	// inline list; the segment still supplies the promotional media.
	ContactsFile string `json:"contacts_file,omitempty"`

	EmailSubject  string `json:"email_subject,omitempty"`
	EmailImageURL string `json:"email_image_url,omitempty"`

	WATemplateName string `json:"wa_template_name,omitempty"`
	WATemplateLang string `json:"wa_template_lang,omitempty"`
	WAParamCount   int    `json:"wa_param_count,omitempty"`

	Status    CampaignStatus `json:"status"`
	LastError sql.NullString `json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewCampaign builds a campaign in its initial state with a normalized
// channel set.
func NewCampaign(id uuid.UUID, name, tenantID, segmentID string, channels []string) *Campaign {
	now := time.Now().UTC()
	return &Campaign{
		ID:        id,
		Name:      name,
		TenantID:  tenantID,
		SegmentID: segmentID,
		Channels:  NormalizeChannels(channels),
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeChannels lowercases, trims, and deduplicates channel names while
// preserving first-seen order. The campaign row only ever stores this form.
func NormalizeChannels(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		c := strings.ToLower(strings.TrimSpace(ch))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// HasChannel reports whether the (already normalized) channel set contains name.
func (c *Campaign) HasChannel(name string) bool {
	for _, ch := range c.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

// CanSend reports whether a dispatch may start from the current state.
// sending is excluded: a running dispatch must finish before the next one.
func (c *Campaign) CanSend() bool {
	switch c.Status {
	case StatusCreated, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ChannelStats holds the per-channel counters of a campaign. Counters are
// monotonic: they are only ever incremented, and they accumulate across
// re-dispatch runs.
type ChannelStats struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Channel    string    `json:"channel"`
	Queued     int       `json:"queued"`
	Skipped    int       `json:"skipped"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
}
