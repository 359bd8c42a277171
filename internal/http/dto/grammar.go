package dto

import "github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"

type CheckGrammarRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

type StatsQuery struct {
	TimeRange string `form:"time_range"`
}

// GrammarCheckResponse is an analysis that is not linked to any message.
type GrammarCheckResponse struct {
	OriginalText   string               `json:"original_text"`
	CorrectedText  string               `json:"corrected_text"`
	HasErrors      bool                 `json:"has_errors"`
	Errors         []model.GrammarError `json:"errors"`
	OverallQuality float64              `json:"overall_quality"`
}

func ToGrammarCheckResponse(text string, a *model.GrammarAnalysis) *GrammarCheckResponse {
	errs := a.Errors
	if errs == nil {
		errs = []model.GrammarError{}
	}
	return &GrammarCheckResponse{
		OriginalText:   text,
		CorrectedText:  a.CorrectedSentence,
		HasErrors:      a.HasErrors,
		Errors:         errs,
		OverallQuality: a.OverallQuality,
	}
}

// FeedbackStreamTimeout and FeedbackStreamError are the terminal payloads of
// the feedback stream when no feedback is delivered.
type FeedbackStreamTimeout struct {
	Timeout bool `json:"timeout"`
}

type FeedbackStreamError struct {
	Error string `json:"error"`
}
