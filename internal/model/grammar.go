package model

import "time"

type ErrorCategory string

const (
	ErrorCategoryGrammar     ErrorCategory = "grammar"
	ErrorCategoryWordChoice  ErrorCategory = "word_choice"
	ErrorCategoryExpression  ErrorCategory = "expression"
	ErrorCategorySpelling    ErrorCategory = "spelling"
	ErrorCategoryPunctuation ErrorCategory = "punctuation"
)

func (c ErrorCategory) IsValid() bool {
	switch c {
	case ErrorCategoryGrammar, ErrorCategoryWordChoice, ErrorCategoryExpression,
		ErrorCategorySpelling, ErrorCategoryPunctuation:
		return true
	}
	return false
}

// Span is a character offset range inside the analyzed text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type GrammarError struct {
	Category    ErrorCategory `json:"type,omitempty" jsonschema:"enum=grammar,enum=word_choice,enum=expression,enum=spelling,enum=punctuation"`
	Original    string        `json:"original" jsonschema:"description=The incorrect fragment as written"`
	Corrected   string        `json:"corrected" jsonschema:"description=The corrected fragment"`
	Explanation string        `json:"explanation" jsonschema:"description=Brief explanation of the mistake"`
	Position    *Span         `json:"position,omitempty"`
}

// GrammarAnalysis is what the grammar critic returns for one piece of text.
type GrammarAnalysis struct {
	HasErrors         bool           `json:"has_errors"`
	Errors            []GrammarError `json:"errors"`
	CorrectedSentence string         `json:"corrected_sentence" jsonschema:"description=The whole utterance rewritten as a complete and coherent sentence"`
	OverallQuality    float64        `json:"overall_quality" jsonschema:"minimum=0,maximum=1"`
}

// GrammarFeedback is a persisted analysis of exactly one user message.
type GrammarFeedback struct {
	ID            int64          `json:"id,string"`
	MessageID     int64          `json:"message_id,string"`
	OriginalText  string         `json:"original_text"`
	CorrectedText string         `json:"corrected_text"`
	HasErrors     bool           `json:"has_errors"`
	Errors        []GrammarError `json:"errors"`
	CreatedAt     time.Time      `json:"created_at"`
}

type StatsRange string

const (
	StatsRange7Days  StatsRange = "7d"
	StatsRange30Days StatsRange = "30d"
	StatsRange90Days StatsRange = "90d"
	StatsRangeAll    StatsRange = "all"
)

// Since returns the lower bound of the range relative to now, or nil for all
// time. ok is false for unknown ranges.
func (r StatsRange) Since(now time.Time) (since *time.Time, ok bool) {
	var days int
	switch r {
	case StatsRange7Days:
		days = 7
	case StatsRange30Days:
		days = 30
	case StatsRange90Days:
		days = 90
	case StatsRangeAll, "":
		return nil, true
	default:
		return nil, false
	}
	t := now.AddDate(0, 0, -days)
	return &t, true
}

type GrammarStats struct {
	TotalMessages      int     `json:"total_messages"`
	MessagesWithErrors int     `json:"messages_with_errors"`
	ErrorRate          float64 `json:"error_rate"`
}
