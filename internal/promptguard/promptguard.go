package promptguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns that indicate an attempt to override the assistant's instructions.
// Matched input is rejected before any model call is made.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions|prompts?|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(your|the|all)\s+(instructions|system\s+prompt|rules)`),
	regexp.MustCompile(`(?i)(reveal|show|print|output)\s+(your|the)\s+(system\s+prompt|hidden\s+instructions|initial\s+prompt)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\b`),
	regexp.MustCompile(`(?i)pretend\s+(you\s+are|to\s+be)\s+`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+have\s+)?no\s+(restrictions|rules|guidelines)`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)\bDAN\s+mode\b`),
	regexp.MustCompile(`(?i)<\s*/?\s*system\s*>`),
	regexp.MustCompile(`(?i)\[\s*system\s*\]`),
}

const maxMessageLength = 4000

// Check validates a chat message before it reaches the model. It returns an
// error for empty input, oversized input, and anything matching a known
// injection pattern.
func Check(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fmt.Errorf("message is empty")
	}
	if len(trimmed) > maxMessageLength {
		return fmt.Errorf("message exceeds %d characters", maxMessageLength)
	}
	for _, p := range injectionPatterns {
		if p.MatchString(trimmed) {
			return fmt.Errorf("message rejected by content filter")
		}
	}
	return nil
}
