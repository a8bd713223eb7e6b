package util

import (
	"strings"
	"unicode/utf8"
)

const tokenNameLength = 16

// BuildTokenName pads the short payment details (usually the last card digits)
// with leading bullets up to the standard token name length.
func BuildTokenName(details string) string {
	if details == "" {
		details = "????"
	}
	pad := tokenNameLength - utf8.RuneCountInString(details)
	if pad <= 0 {
		return details
	}
	return strings.Repeat("•", pad) + details
}
