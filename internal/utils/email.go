package utils

import (
	"regexp"
)

// addressPattern is a deliberately coarse check: one @ and a dot in the
// domain. Real validation happens at the receiving mail system.
var addressPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// ValidAddress reports whether s looks like an email address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}
