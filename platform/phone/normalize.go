// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// CountryPrefix is the dial prefix every canonical number carries (Brazil).
const CountryPrefix = "55"

const defaultRegion = "BR"

// Normalize turns an arbitrary phone string into the canonical digits-only,
// country-prefixed form used as the lead dedup key. It never fails: inputs it
// cannot make sense of are best-effort prefixed rather than rejected.
func Normalize(raw string) string {
	digits := stripNonDigits(raw)

	if strings.HasPrefix(digits, CountryPrefix) {
		return digits
	}

	switch {
	case len(digits) == 10 || len(digits) == 11:
		// National number with area code, with or without the mobile ninth digit.
		return CountryPrefix + digits
	case len(digits) > 11:
		// Already international, just not ours.
		return digits
	default:
		return CountryPrefix + digits
	}
}

// DigitCount returns how many digits survive stripping. Callers that want to
// reject short numbers (the inbound processor does) check this separately,
// since Normalize itself never rejects.
func DigitCount(raw string) int {
	return len(stripNonDigits(raw))
}

// ValidateE164 reports whether a user-entered phone parses as a valid number
// and returns its E.164 form. Used on the admin lead-create path, where strict
// validation is wanted; the webhook path relies on Normalize only.
func ValidateE164(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", false
	}
	return phonenumbers.Format(number, phonenumbers.E164), true
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
