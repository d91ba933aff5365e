package contacts

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// canonicalPhonePattern matches digits-only E.164: 2-15 digits, first non-zero.
var canonicalPhonePattern = regexp.MustCompile(`^[1-9][0-9]{1,14}$`)

// NormalizePhone converts a free-form phone string into digits-only E.164
// without the leading "+", or returns false if no valid number can be made.
// defaultRegion (ISO 3166-1 alpha-2, e.g. "MX") applies when raw carries no
// international prefix.
func NormalizePhone(raw, defaultRegion string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	var canonical string
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err == nil {
		canonical = strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
	} else {
		// The parser rejects overlong inputs outright; fall back to bare
		// digits so the trunk-fragment correction below still gets a chance.
		canonical = digitsOnly(raw)
	}

	canonical = correctMexicanTrunkFragment(canonical)

	if !IsValidPhone(canonical) {
		return "", false
	}
	return canonical, true
}

// IsValidPhone reports whether candidate is a plausible digits-only E.164
// number: digits only, length 2-15, first digit non-zero.
func IsValidPhone(candidate string) bool {
	return canonicalPhonePattern.MatchString(candidate)
}

// correctMexicanTrunkFragment removes the legacy "045" national trunk prefix
// that sometimes survives embedded in stored Mexican mobile numbers
// ("521" + "045" + 10-digit local). Only applied when the number claims
// country code 52 with the mobile "1" marker and would otherwise exceed the
// 15-digit E.164 maximum; anything shorter is left untouched.
func correctMexicanTrunkFragment(p string) string {
	const ccMobileMX = "521"
	if len(p) > 15 && strings.HasPrefix(p, ccMobileMX) && strings.HasPrefix(p[len(ccMobileMX):], "045") {
		return ccMobileMX + p[len(ccMobileMX)+3:]
	}
	return p
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
