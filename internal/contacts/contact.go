package contacts

import "strings"

// Contact is a single recipient as delivered by a segment source. Raw fields
// keep the segment's wire names; canonical channel addresses are derived on
// demand and never stored. Contacts exist only for the duration of one
// dispatch run.
type Contact struct {
	Email           string `json:"email"`
	Telefono        string `json:"telefono"`
	TelefonoRaw     string `json:"telefonoRaw,omitempty"`
	Nombre          string `json:"nombre"`
	VehiculoInteres string `json:"vehiculoInteres,omitempty"`
}

// EmailAddress returns the canonical email for the email channel, or false if
// the contact has no usable address.
func (c Contact) EmailAddress() (string, bool) {
	return NormalizeEmail(c.Email)
}

// WhatsAppNumber returns the canonical phone for the WhatsApp channel. The
// primary phone field is tried first; the raw fallback field covers segments
// where the primary was never normalized upstream.
func (c Contact) WhatsAppNumber(defaultRegion string) (string, bool) {
	if number, ok := NormalizePhone(c.Telefono, defaultRegion); ok {
		return number, true
	}
	return NormalizePhone(c.TelefonoRaw, defaultRegion)
}

// DisplayName returns the contact's name, or fallback when blank.
func (c Contact) DisplayName(fallback string) string {
	if name := strings.TrimSpace(c.Nombre); name != "" {
		return name
	}
	return fallback
}
