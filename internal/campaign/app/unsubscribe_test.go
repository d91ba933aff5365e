package app

import (
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsubscribeTokens_RoundTrip(t *testing.T) {
	tokens := NewUnsubscribeTokens("secret", "https://example.com/unsubscribe")
	campaignID := uuid.New()

	link, err := tokens.URLFor(campaignID, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://example.com/unsubscribe?token="))

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	email, cid, err := tokens.Parse(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)
	assert.Equal(t, campaignID, cid)
}

func TestUnsubscribeTokens_RejectsWrongSecret(t *testing.T) {
	mint := NewUnsubscribeTokens("secret-a", "https://example.com/unsubscribe")
	verify := NewUnsubscribeTokens("secret-b", "https://example.com/unsubscribe")

	link, err := mint.URLFor(uuid.New(), "ana@example.com")
	require.NoError(t, err)
	parsed, _ := url.Parse(link)

	_, _, err = verify.Parse(parsed.Query().Get("token"))
	assert.Error(t, err)
}

func TestUnsubscribeTokens_RejectsWrongScope(t *testing.T) {
	tokens := NewUnsubscribeTokens("secret", "https://example.com/unsubscribe")

	claims := jwt.MapClaims{
		"sub":   "ana@example.com",
		"cid":   uuid.NewString(),
		"scope": "login",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, _, err = tokens.Parse(signed)
	assert.Error(t, err)
}

func TestUnsubscribeTokens_RejectsGarbage(t *testing.T) {
	tokens := NewUnsubscribeTokens("secret", "https://example.com/unsubscribe")
	_, _, err := tokens.Parse("definitely-not-a-jwt")
	assert.Error(t, err)
}
