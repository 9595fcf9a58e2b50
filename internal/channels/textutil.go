package channels

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	replyPrefixRe = regexp.MustCompile(`(?i)^(re|fwd|fw):\s*`)
	quoteHeaderRe = regexp.MustCompile(`^On .+ wrote:$`)
)

// StripHTML removes all tags, collapses whitespace runs to a single space and
// trims the result.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractSubject splits a drafted reply of the form "Subject: <s>\n<body>"
// into its subject and body. Without that prefix (or without a newline after
// the subject line) the whole text is the body under the default subject.
func ExtractSubject(text string) (string, string) {
	if strings.HasPrefix(text, "Subject:") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			subject := strings.TrimSpace(text[len("Subject:"):idx])
			body := strings.TrimLeft(text[idx+1:], " \t\r\n")
			return subject, body
		}
	}
	return "AI Assist", text
}

// NormalizeSubject recursively strips leading "Re:", "Fwd:" and "Fw:"
// prefixes (case-insensitive) and trims whitespace.
// NormalizeSubject is idempotent: applying it twice equals applying it once.
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	for {
		stripped := replyPrefixRe.ReplaceAllString(subject, "")
		stripped = strings.TrimSpace(stripped)
		if stripped == subject {
			return subject
		}
		subject = stripped
	}
}

// StripQuotedText removes quoted reply content from an email body:
// ">"-prefixed lines are dropped, everything from an "On ... wrote:" header or
// an "--- Original Message ---" separator onward is cut, and trailing blank
// lines are trimmed.
func StripQuotedText(body string) string {
	lines := strings.Split(body, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if quoteHeaderRe.MatchString(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, "---") && strings.Contains(trimmed, "Original Message") {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, "\n")
}
