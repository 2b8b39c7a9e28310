// Package sanitize validates and cleans user-supplied chat input before it
// reaches the retrieval pipeline. It strips role-manipulation markers from
// queries and screens for common prompt-injection phrasing.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLen is the maximum accepted query length in characters, after
// trimming.
const MaxQueryLen = 1000

// MaxSelectedTextLen is the maximum accepted selected-text length in
// characters.
const MaxSelectedTextLen = 1000

// maliciousPatterns are removed from queries outright: role markers and
// special token syntax that try to smuggle instructions past the system
// prompt.
var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)assistant\s*:`),
	regexp.MustCompile(`(?i)user\s*:`),
	regexp.MustCompile(`(?i)<\|.*?\|>`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)\[/INST\]`),
	regexp.MustCompile(`(?i)###\s*Instruction`),
	regexp.MustCompile(`(?i)###\s*System`),
}

// injectionIndicators flag queries that should be rejected rather than
// cleaned: direct attempts to override the assistant's instructions.
var injectionIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|above|all)\s+(instructions|prompts?)`),
	regexp.MustCompile(`(?i)disregard\s+.*?(instructions|rules)`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)system\s+override`),
	regexp.MustCompile(`(?i)admin\s+mode`),
	regexp.MustCompile(`(?i)developer\s+mode`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)act\s+as\s+(if|though)`),
}

var (
	tripleNewline = regexp.MustCompile(`\n{3,}`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	uuidPattern   = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Query trims and cleans a user query. It returns an error when the query is
// empty or longer than MaxQueryLen; role markers and token syntax are removed
// and whitespace is collapsed.
func Query(query string) (string, error) {
	query = strings.TrimSpace(query)

	if query == "" {
		return "", fmt.Errorf("query cannot be empty")
	}
	if utf8.RuneCountInString(query) > MaxQueryLen {
		return "", fmt.Errorf("query exceeds maximum length of %d characters", MaxQueryLen)
	}

	for _, p := range maliciousPatterns {
		query = p.ReplaceAllString(query, "")
	}

	query = tripleNewline.ReplaceAllString(query, "\n\n")
	query = strings.TrimSpace(whitespaceRun.ReplaceAllString(query, " "))

	return query, nil
}

// SelectedText cleans optional selected page text. Out-of-bounds or empty
// input yields an empty string rather than an error; the chat degrades
// gracefully to answering without it.
func SelectedText(text string) string {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < 1 || n > MaxSelectedTextLen {
		return ""
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// ValidSessionID reports whether sessionID is a well-formed UUID.
func ValidSessionID(sessionID string) bool {
	return uuidPattern.MatchString(sessionID)
}

// DetectPromptInjection reports whether text matches known injection
// phrasing. Callers reject flagged input rather than attempting to clean it.
func DetectPromptInjection(text string) bool {
	for _, p := range injectionIndicators {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
