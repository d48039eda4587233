package email

import (
	"net/mail"
	"strings"
)

// Normalize trims and lower-cases an address; identities are unique on the
// normalized form.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValid reports whether address is a bare RFC 5322 address (no display name).
func IsValid(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Address == address && strings.Contains(address[strings.LastIndexByte(address, '@'):], ".")
}

// Matches reports whether two addresses are equal after normalization.
func Matches(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
