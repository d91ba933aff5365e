package app

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlink/golang_services/internal/campaign/adapters/segments"
	"github.com/motorlink/golang_services/internal/campaign/domain"
	"github.com/motorlink/golang_services/internal/contacts"
)

type serviceFixture struct {
	*dispatcherFixture
	service *CampaignAppService
	tokens  *UnsubscribeTokens
}

func newServiceFixture(t *testing.T, c *domain.Campaign, seg *segments.Segment) *serviceFixture {
	t.Helper()
	df := newDispatcherFixture(t, c, seg)
	tokens := NewUnsubscribeTokens("test-secret", "https://mail.example.com/unsubscribe")
	svc := NewCampaignAppService(df.campaigns, df.stats, df.suppressions, df.dispatcher, tokens, testLogger())
	return &serviceFixture{dispatcherFixture: df, service: svc, tokens: tokens}
}

func TestCampaignAppService_CreateCampaign(t *testing.T) {
	f := newServiceFixture(t, emailCampaign(), &segments.Segment{})

	c, err := f.service.CreateCampaign(context.Background(), CreateCampaignParams{
		Name:         "Promo Otoño",
		TenantID:     "tenant-9",
		SegmentID:    "segment-9",
		SegmentToken: "tok",
		Channels:     []string{"Email", "WHATSAPP", "email"},
		ContactsFile: "/var/uploads/contactos.xlsx",
		EmailSubject: "Ofertas",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCreated, c.Status)
	assert.Equal(t, []string{"email", "whatsapp"}, c.Channels)
	assert.True(t, c.SegmentToken.Valid)
	assert.Equal(t, "tok", c.SegmentToken.String)
	assert.Equal(t, "/var/uploads/contactos.xlsx", c.ContactsFile)

	stored, err := f.campaigns.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)
}

func TestCampaignAppService_SendCompletesCampaign(t *testing.T) {
	seg := &segments.Segment{Clientes: []contacts.Contact{{Email: "ana@example.com"}}}
	c := emailCampaign()
	f := newServiceFixture(t, c, seg)

	require.NoError(t, f.service.Send(context.Background(), c.ID))

	assert.Equal(t, domain.StatusCompleted, c.Status)
	assert.Equal(t, []domain.CampaignStatus{domain.StatusSending, domain.StatusCompleted}, f.campaigns.statuses)
	assert.Empty(t, f.campaigns.lastError)
	assert.Len(t, f.queue.jobs, 1)
}

func TestCampaignAppService_SendFailureRecordsLastError(t *testing.T) {
	c := emailCampaign()
	f := newServiceFixture(t, c, nil)
	f.segments.err = segments.ErrSegmentNotFound

	err := f.service.Send(context.Background(), c.ID)
	require.Error(t, err)

	assert.Equal(t, domain.StatusFailed, c.Status)
	assert.Contains(t, f.campaigns.lastError, "segment")
}

func TestCampaignAppService_SendRejectsSendingCampaign(t *testing.T) {
	c := emailCampaign()
	c.Status = domain.StatusSending
	f := newServiceFixture(t, c, &segments.Segment{})

	err := f.service.Send(context.Background(), c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCampaignAppService_SendUnknownCampaign(t *testing.T) {
	f := newServiceFixture(t, emailCampaign(), &segments.Segment{})
	err := f.service.Send(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCampaignAppService_SingleFlightConflict(t *testing.T) {
	seg := &segments.Segment{Clientes: []contacts.Contact{{Email: "ana@example.com"}}}
	c := emailCampaign()
	f := newServiceFixture(t, c, seg)

	// Hold the dispatch open by blocking inside the enqueue throttle.
	started := make(chan struct{})
	release := make(chan struct{})
	f.dispatcher.sleep = func(time.Duration) {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- f.service.Send(context.Background(), c.ID) }()
	<-started

	err := f.service.Send(context.Background(), c.ID)
	assert.ErrorIs(t, err, domain.ErrDispatchInProgress)

	close(release)
	require.NoError(t, <-done)

	// Guard released: campaign is sendable again.
	f.dispatcher.sleep = func(time.Duration) {}
	assert.NoError(t, f.service.Send(context.Background(), c.ID))
}

func TestCampaignAppService_ResendAccumulates(t *testing.T) {
	seg := &segments.Segment{Clientes: []contacts.Contact{{Email: "ana@example.com"}}}
	c := emailCampaign()
	f := newServiceFixture(t, c, seg)

	require.NoError(t, f.service.Send(context.Background(), c.ID))
	require.NoError(t, f.service.Resend(context.Background(), c.ID))

	assert.Equal(t, domain.StatusCompleted, c.Status)
	assert.Equal(t, 2, f.stats.queued["email"])
}

func TestCampaignAppService_ResendRecoversStaleSendingCampaign(t *testing.T) {
	// A run cut short by process death strands the campaign in sending;
	// resend is the way out.
	seg := &segments.Segment{Clientes: []contacts.Contact{{Email: "ana@example.com"}}}
	c := emailCampaign()
	c.Status = domain.StatusSending
	f := newServiceFixture(t, c, seg)

	assert.ErrorIs(t, f.service.Send(context.Background(), c.ID), domain.ErrInvalidTransition)

	require.NoError(t, f.service.Resend(context.Background(), c.ID))
	assert.Equal(t, domain.StatusCompleted, c.Status)
}

func TestCampaignAppService_TriggerSendValidatesSynchronously(t *testing.T) {
	c := emailCampaign()
	c.Status = domain.StatusSending
	f := newServiceFixture(t, c, &segments.Segment{})

	err := f.service.TriggerSend(context.Background(), c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCampaignAppService_TriggerSendRunsInBackground(t *testing.T) {
	seg := &segments.Segment{Clientes: []contacts.Contact{{Email: "ana@example.com"}}}
	c := emailCampaign()
	f := newServiceFixture(t, c, seg)

	require.NoError(t, f.service.TriggerSend(context.Background(), c.ID))

	require.Eventually(t, func() bool {
		cur, err := f.campaigns.GetByID(context.Background(), c.ID)
		return err == nil && cur.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.queue.jobs, 1)
}

func TestCampaignAppService_DetailsWithStats(t *testing.T) {
	seg := &segments.Segment{Clientes: []contacts.Contact{{Email: "ana@example.com"}}}
	c := emailCampaign()
	f := newServiceFixture(t, c, seg)
	require.NoError(t, f.service.Send(context.Background(), c.ID))

	got, stats, err := f.service.DetailsWithStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	require.Len(t, stats, 1)
	assert.Equal(t, "email", stats[0].Channel)
	assert.Equal(t, 1, stats[0].Queued)
}

func TestCampaignAppService_Unsubscribe(t *testing.T) {
	c := emailCampaign()
	f := newServiceFixture(t, c, &segments.Segment{})

	link, err := f.tokens.URLFor(c.ID, "ana@example.com")
	require.NoError(t, err)
	parsed, _ := url.Parse(link)

	require.NoError(t, f.service.Unsubscribe(context.Background(), parsed.Query().Get("token")))
	assert.Equal(t, []string{"ana@example.com"}, f.suppressions.added)

	// Clicking the same link twice stays idempotent.
	require.NoError(t, f.service.Unsubscribe(context.Background(), parsed.Query().Get("token")))

	suppressed, err := f.suppressions.IsSuppressed(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestCampaignAppService_UnsubscribeRejectsBadToken(t *testing.T) {
	f := newServiceFixture(t, emailCampaign(), &segments.Segment{})
	assert.Error(t, f.service.Unsubscribe(context.Background(), "garbage"))
}
