package service

import (
	"encoding/json"
	"strings"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

const fence = "```"

// ExtractJSON returns the payload of the first fenced block in raw, skipping
// an optional language tag. An unterminated fence runs to the end of raw.
// Without any fence the whole trimmed input is returned.
func ExtractJSON(raw string) string {
	start := strings.Index(raw, fence)
	if start < 0 {
		return strings.TrimSpace(raw)
	}

	body := raw[start+len(fence):]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}

	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLanguageTag(body[:nl]) {
		body = body[nl+1:]
	} else if isLanguageTag(body) {
		return ""
	} else {
		body = stripInlineTag(body)
	}
	return strings.TrimSpace(body)
}

// stripInlineTag drops a language tag written on the same line as the
// payload, as in "```json {...}```". The tag is only removed when
// whitespace and an opening brace follow it.
func stripInlineTag(body string) string {
	trimmed := strings.TrimLeft(body, " \t")
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !isTagRune(r) })
	if end <= 0 {
		return body
	}
	rest := strings.TrimLeft(trimmed[end:], " \t\r\n")
	if len(rest) == len(trimmed[end:]) || !strings.HasPrefix(rest, "{") {
		return body
	}
	return rest
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+'
}

// isLanguageTag reports whether line looks like the info string of a fence,
// e.g. "json" or "JSON".
func isLanguageTag(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	return strings.IndexFunc(line, func(r rune) bool { return !isTagRune(r) }) < 0
}

type rawGrammarError struct {
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Original    string      `json:"original"`
	Corrected   string      `json:"corrected"`
	Explanation string      `json:"explanation"`
	Position    *model.Span `json:"position"`
	Span        *model.Span `json:"span"`
}

type rawGrammarAnalysis struct {
	HasErrors         *bool             `json:"has_errors"`
	Errors            []rawGrammarError `json:"errors"`
	CorrectedSentence *string           `json:"corrected_sentence"`
	OverallQuality    *float64          `json:"overall_quality"`
}

// NoErrorsAnalysis is the result used whenever critic output cannot be read.
func NoErrorsAnalysis() model.GrammarAnalysis {
	return model.GrammarAnalysis{
		HasErrors:         false,
		Errors:            []model.GrammarError{},
		CorrectedSentence: "",
		OverallQuality:    1.0,
	}
}

// ParseGrammarResponse reads critic output. It never fails: unreadable output
// yields NoErrorsAnalysis.
func ParseGrammarResponse(raw string) model.GrammarAnalysis {
	payload := ExtractJSON(raw)
	if !strings.HasPrefix(payload, "{") {
		return NoErrorsAnalysis()
	}

	var parsed rawGrammarAnalysis
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return NoErrorsAnalysis()
	}

	result := NoErrorsAnalysis()
	if parsed.HasErrors != nil {
		result.HasErrors = *parsed.HasErrors
	}
	if parsed.CorrectedSentence != nil {
		result.CorrectedSentence = *parsed.CorrectedSentence
	}
	if parsed.OverallQuality != nil {
		result.OverallQuality = *parsed.OverallQuality
	}
	for _, e := range parsed.Errors {
		result.Errors = append(result.Errors, e.toModel())
	}
	return result
}

func (e rawGrammarError) toModel() model.GrammarError {
	category := model.ErrorCategory(strings.ToLower(strings.TrimSpace(e.Type)))
	if category == "" {
		category = model.ErrorCategory(strings.ToLower(strings.TrimSpace(e.Category)))
	}
	if !category.IsValid() {
		category = model.ErrorCategoryGrammar
	}

	position := e.Position
	if position == nil {
		position = e.Span
	}

	return model.GrammarError{
		Category:    category,
		Original:    e.Original,
		Corrected:   e.Corrected,
		Explanation: e.Explanation,
		Position:    position,
	}
}
