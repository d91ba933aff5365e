package app

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// unsubscribeTTL bounds how long an unsubscribe link in a sent email stays
// valid. Generous on purpose: people unsubscribe from old mail.
const unsubscribeTTL = 180 * 24 * time.Hour

// UnsubscribeTokens mints and verifies the signed tokens embedded in
// one-click unsubscribe links, keyed by recipient email and campaign.
type UnsubscribeTokens struct {
	secret  []byte
	baseURL string
}

func NewUnsubscribeTokens(secret, baseURL string) *UnsubscribeTokens {
	return &UnsubscribeTokens{secret: []byte(secret), baseURL: baseURL}
}

// URLFor returns the unsubscribe link for one recipient of one campaign.
func (t *UnsubscribeTokens) URLFor(campaignID uuid.UUID, email string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   email,
		"cid":   campaignID.String(),
		"scope": "unsubscribe",
		"iat":   now.Unix(),
		"exp":   now.Add(unsubscribeTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign unsubscribe token: %w", err)
	}
	return t.baseURL + "?token=" + url.QueryEscape(signed), nil
}

// Parse verifies a token and returns the recipient email and campaign id it
// was minted for.
func (t *UnsubscribeTokens) Parse(tokenString string) (email string, campaignID uuid.UUID, err error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid unsubscribe token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != "unsubscribe" {
		return "", uuid.Nil, fmt.Errorf("invalid unsubscribe token: wrong scope")
	}
	email, _ = claims["sub"].(string)
	cidStr, _ := claims["cid"].(string)
	if email == "" || cidStr == "" {
		return "", uuid.Nil, fmt.Errorf("invalid unsubscribe token: missing claims")
	}
	campaignID, err = uuid.Parse(cidStr)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid unsubscribe token: bad campaign id: %w", err)
	}
	return email, campaignID, nil
}
