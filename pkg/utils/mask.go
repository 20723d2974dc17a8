package utils

import "regexp"

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// MaskDSN hides the password portion of a connection string for logging.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskToken keeps the first and last two characters of a secret token and
// replaces the rest, so logs can correlate tokens without exposing them.
func MaskToken(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:2] + "***" + token[len(token)-2:]
}
