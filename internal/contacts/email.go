package contacts

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailValidate = validator.New()

// NormalizeEmail lowercases and trims raw and checks it is RFC-shaped.
// The canonical form is the deduplication key for the email channel.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	if err := emailValidate.Var(email, "email"); err != nil {
		return "", false
	}
	return email, true
}
