package tail

import "regexp"

// Redacted replaces every secret the Redactor finds.
const Redacted = "[REDACTED]"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor derives content_redacted from raw content.
type Redactor struct {
	rules []redaction
}

// NewRedactor returns a Redactor with the built-in rules: <private> blocks,
// provider API keys, bearer tokens, AWS access keys and key=value secrets.
func NewRedactor() *Redactor {
	return &Redactor{rules: []redaction{
		{regexp.MustCompile(`(?s)<private>.*?</private>`), Redacted},
		{regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}`), Redacted},
		{regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}`), Redacted},
		{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), Redacted},
		{regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}`), Redacted},
		{regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]{16,}`), "${1} " + Redacted},
		{regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|passwd|token)(\s*[:=]\s*)["']?[^\s"']{6,}["']?`), "${1}${2}" + Redacted},
	}}
}

// Redact applies every rule in order.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}
