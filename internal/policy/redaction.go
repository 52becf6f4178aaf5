package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	secretPattern = regexp.MustCompile(`\b(?:sk|ek|rk)-[A-Za-z0-9_\-]{16,}\b`)
)

type redaction struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: cards before phones so long digit runs are not classified
// as phone numbers.
var redactions = []redaction{
	{secretPattern, "[REDACTED_SECRET]"},
	{emailPattern, "[REDACTED_EMAIL]"},
	{cardPattern, "[REDACTED_CARD]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns and credential-shaped tokens
// before transcript text is stored.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range redactions {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// RedactTranscript is RedactPII with surrounding whitespace trimmed, which is
// how final transcript lines are persisted.
func RedactTranscript(input string) (string, bool) {
	return RedactPII(strings.TrimSpace(input))
}
