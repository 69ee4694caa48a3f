package utils

import (
	"regexp"
	"strings"
)

var replyPrefixRegex = regexp.MustCompile(`(?i)^(Re|Fwd|Fw)(\[\d+\])?:\s*`)

// NormalizeEmailSubject removes reply prefixes like Re:, RE:, Fwd: from a
// subject, repeatedly, so "RE: Re: x" normalizes to "x".
func NormalizeEmailSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	for replyPrefixRegex.MatchString(subject) {
		subject = replyPrefixRegex.ReplaceAllString(subject, "")
		subject = strings.TrimSpace(subject)
	}
	return subject
}

var bracketedAddressRegex = regexp.MustCompile(`<([^>]+)>`)

// ExtractEmailAddress returns the bare address from a From header value,
// preferring the bracketed form ("John Doe <john@acme.com>" -> "john@acme.com").
func ExtractEmailAddress(from string) string {
	from = strings.TrimSpace(from)
	if m := bracketedAddressRegex.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1])
	}
	return from
}
