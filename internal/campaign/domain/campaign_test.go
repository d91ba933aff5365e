package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeChannels(t *testing.T) {
	assert.Equal(t, []string{"email", "whatsapp"}, NormalizeChannels([]string{" Email ", "WHATSAPP", "email"}))
	assert.Equal(t, []string{"whatsapp", "email"}, NormalizeChannels([]string{"whatsapp", "email", "whatsapp"}))
	assert.Empty(t, NormalizeChannels([]string{"", "   "}))
	assert.Empty(t, NormalizeChannels(nil))
}

func TestCampaignCanSend(t *testing.T) {
	c := NewCampaign(uuid.New(), "n", "t", "s", []string{"email"})

	assert.Equal(t, StatusCreated, c.Status)
	assert.True(t, c.CanSend())

	c.Status = StatusSending
	assert.False(t, c.CanSend())

	c.Status = StatusCompleted
	assert.True(t, c.CanSend(), "finished campaigns accept a re-dispatch")

	c.Status = StatusFailed
	assert.True(t, c.CanSend(), "failed campaigns accept a retry")
}

func TestCampaignHasChannel(t *testing.T) {
	c := NewCampaign(uuid.New(), "n", "t", "s", []string{"Email", "whatsapp"})
	assert.True(t, c.HasChannel(ChannelEmail))
	assert.True(t, c.HasChannel(ChannelWhatsApp))
	assert.False(t, c.HasChannel("sms"))
}
