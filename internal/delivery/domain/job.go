package domain

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel identifies an independent delivery queue.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// JobStatus represents the state of a delivery job in its queue.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"    // Eligible once next_attempt_at passes
	StatusInFlight  JobStatus = "in_flight" // Claimed by a worker
	StatusCompleted JobStatus = "completed" // Transport accepted the message
	StatusFailed    JobStatus = "failed"    // Permanent failure or retries exhausted
)

// JobPayload is the persisted job schema shared by both channels. Email jobs
// fill the subject/html/text/from/headers group; WhatsApp jobs fill the
// template group.
type JobPayload struct {
	To         string            `json:"to"`
	CampaignID uuid.UUID         `json:"campaignId"`
	Subject    string            `json:"subject,omitempty"`
	HTML       string            `json:"html,omitempty"`
	Text       string            `json:"text,omitempty"`
	From       string            `json:"from,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`

	TemplateName   string   `json:"templateName,omitempty"`
	LanguageCode   string   `json:"languageCode,omitempty"`
	BodyParams     []string `json:"bodyParams,omitempty"`
	HeaderImageURL string   `json:"headerImageUrl,omitempty"`
}

// DeliveryJob is one unit of work in a channel queue.
type DeliveryJob struct {
	ID      uuid.UUID `json:"id"`
	Channel Channel   `json:"channel"`
	// JobKey is the deterministic identity used for idempotent enqueueing.
	// Set for WhatsApp jobs; email jobs rely on upstream dedup and carry none.
	JobKey        sql.NullString `json:"job_key,omitempty"`
	CampaignID    uuid.UUID      `json:"campaign_id"`
	Payload       JobPayload     `json:"payload"`
	Status        JobStatus      `json:"status"`
	Attempts      int            `json:"attempts"`
	MaxAttempts   int            `json:"max_attempts"`
	BackoffBase   time.Duration  `json:"backoff_base"`
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	LastError     sql.NullString `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   sql.NullTime   `json:"completed_at,omitempty"`
}

// EnqueueOptions control scheduling and retry behavior of a new job.
type EnqueueOptions struct {
	// Delay postpones eligibility; zero means immediately due.
	Delay time.Duration
	// MaxAttempts bounds total delivery attempts (first try included).
	MaxAttempts int
	// BackoffBase is the first retry delay; subsequent retries double it.
	BackoffBase time.Duration
	// JobKey, when non-empty, makes the enqueue idempotent: a second submit
	// with the same key is a no-op.
	JobKey string
}

// JobHandle is what an enqueue call returns to its caller.
type JobHandle struct {
	ID uuid.UUID
	// Duplicate is true when the job key already existed and no new job was
	// created.
	Duplicate bool
}

// WhatsAppJobKey derives the deterministic identity of a WhatsApp job from
// its stable inputs. Equal inputs always map to the same key, which is what
// makes caller-side retries of the submit call safe.
func WhatsAppJobKey(campaignID uuid.UUID, recipient, templateName string) string {
	return fmt.Sprintf("%s:%s:%s:%s", ChannelWhatsApp, campaignID, recipient, templateName)
}

// JobSubject returns the NATS subject workers of the given channel listen on.
func JobSubject(ch Channel) string {
	return "delivery.jobs." + string(ch)
}
