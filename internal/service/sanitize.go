package service

import (
	"regexp"
	"strings"
)

// reasoningPattern matches <think>...</think> blocks some hosted models emit
// before their answer.
var reasoningPattern = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// speakerPattern matches a leading speaker label such as "Assistant:" or "AI:".
var speakerPattern = regexp.MustCompile(`^(?i:assistant|ai|tutor)\s*:\s*`)

// SanitizeReply removes model artifacts from a reply before it is stored and
// shown to the learner. It returns the cleaned reply and how many artifacts
// were stripped.
func SanitizeReply(content string) (string, int) {
	count := 0

	if matches := reasoningPattern.FindAllStringIndex(content, -1); len(matches) > 0 {
		count += len(matches)
		content = reasoningPattern.ReplaceAllString(content, "")
	}

	content = strings.TrimSpace(content)
	if loc := speakerPattern.FindStringIndex(content); loc != nil {
		count++
		content = strings.TrimSpace(content[loc[1]:])
	}

	return content, count
}
