package policy

import "regexp"

// Patterns ordered so card numbers are masked before the looser phone pattern
// can claim them.
var piiPatterns = []struct {
	re      *regexp.Regexp
	marker  string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns before text reaches the
// persisted rolling memory.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, p := range piiPatterns {
		next := p.re.ReplaceAllString(out, p.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
