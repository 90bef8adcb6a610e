package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer      = bluemonday.UGCPolicy()
	plainSanitizer = bluemonday.StrictPolicy()
)

// Sanitize cleans user HTML (comments, journal bodies, descriptions) to prevent XSS.
func Sanitize(input string) string {
	return strings.TrimSpace(sanitizer.Sanitize(input))
}

// SanitizeText strips all markup; used for titles, usernames and topics.
func SanitizeText(input string) string {
	return strings.TrimSpace(plainSanitizer.Sanitize(input))
}
