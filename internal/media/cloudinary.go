// Package media normalizes promotional media URLs for outbound channels.
package media

import (
	"net/url"
	"strings"
)

// deliveryTransform is the Cloudinary transformation injected into delivery
// URLs: automatic format and quality, width capped for mail clients and the
// WhatsApp media proxy.
const deliveryTransform = "f_auto,q_auto,w_1600"

// TransformDeliveryURL returns a channel-safe HTTPS URL for raw. Cloudinary
// upload URLs get the delivery transformation injected after the /upload/
// segment (already-transformed URLs are returned unchanged). A URL that
// cannot be parsed never fails the campaign: the original is returned with
// the scheme forced to HTTPS.
func TransformDeliveryURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ForceHTTPS(raw)
	}
	u.Scheme = "https"

	if !strings.Contains(u.Host, "cloudinary.com") {
		return u.String()
	}

	const marker = "/upload/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return u.String()
	}

	rest := u.Path[idx+len(marker):]
	if strings.HasPrefix(rest, deliveryTransform) {
		return u.String()
	}

	u.Path = u.Path[:idx+len(marker)] + deliveryTransform + "/" + rest
	return u.String()
}

// ForceHTTPS rewrites the scheme of raw to https without otherwise touching
// it. Scheme-less values get the prefix added.
func ForceHTTPS(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "http://"):
		return "https://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	default:
		return "https://" + raw
	}
}
