package http

import (
	"time"

	"github.com/motorlink/golang_services/internal/campaign/domain"
)

// CreateCampaignRequestDTO is the POST /api/campaigns body.
type CreateCampaignRequestDTO struct {
	Name      string   `json:"name" validate:"required,min=1,max=200"`
	TenantID  string   `json:"tenant_id" validate:"required"`
	SegmentID string   `json:"segment_id" validate:"required"`
	Channels  []string `json:"channels" validate:"required,min=1,dive,oneof=email whatsapp"`

	// ContactsFile optionally points at an uploaded spreadsheet; recipients
	// then come from the file instead of the segment's inline list.
	ContactsFile string `json:"contacts_file,omitempty" validate:"omitempty,endswith=.xlsx"`

	EmailSubject  string `json:"email_subject,omitempty" validate:"omitempty,max=300"`
	EmailImageURL string `json:"email_image_url,omitempty" validate:"omitempty,url"`

	WATemplateName string `json:"wa_template_name,omitempty"`
	WATemplateLang string `json:"wa_template_lang,omitempty"`
	WAParamCount   int    `json:"wa_param_count,omitempty" validate:"omitempty,min=0,max=10"`
}

// CampaignDTO is the campaign representation returned to clients.
type CampaignDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TenantID      string   `json:"tenant_id"`
	SegmentID     string   `json:"segment_id"`
	Channels      []string `json:"channels"`
	ContactsFile  string   `json:"contacts_file,omitempty"`
	EmailSubject  string   `json:"email_subject,omitempty"`
	EmailImageURL string   `json:"email_image_url,omitempty"`

	WATemplateName string `json:"wa_template_name,omitempty"`
	WATemplateLang string `json:"wa_template_lang,omitempty"`
	WAParamCount   int    `json:"wa_param_count,omitempty"`

	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelStatsDTO is one channel's counters within a campaign detail.
type ChannelStatsDTO struct {
	Channel string `json:"channel"`
	Queued  int    `json:"queued"`
	Skipped int    `json:"skipped"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

// CampaignDetailsDTO is the GET /api/campaigns/{id} response.
type CampaignDetailsDTO struct {
	CampaignDTO
	Stats []ChannelStatsDTO `json:"stats"`
}

// SendAcceptedDTO acknowledges an accepted dispatch trigger.
type SendAcceptedDTO struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
}

func toCampaignDTO(c *domain.Campaign) CampaignDTO {
	dto := CampaignDTO{
		ID:             c.ID.String(),
		Name:           c.Name,
		TenantID:       c.TenantID,
		SegmentID:      c.SegmentID,
		Channels:       c.Channels,
		ContactsFile:   c.ContactsFile,
		EmailSubject:   c.EmailSubject,
		EmailImageURL:  c.EmailImageURL,
		WATemplateName: c.WATemplateName,
		WATemplateLang: c.WATemplateLang,
		WAParamCount:   c.WAParamCount,
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.LastError.Valid {
		dto.LastError = c.LastError.String
	}
	return dto
}

func toStatsDTOs(stats []domain.ChannelStats) []ChannelStatsDTO {
	dtos := make([]ChannelStatsDTO, len(stats))
	for i, s := range stats {
		dtos[i] = ChannelStatsDTO{
			Channel: s.Channel,
			Queued:  s.Queued,
			Skipped: s.Skipped,
			Sent:    s.Sent,
			Failed:  s.Failed,
		}
	}
	return dtos
}
