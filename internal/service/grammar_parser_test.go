package service_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

const wellFormed = `{
  "has_errors": true,
  "errors": [
    {"type": "grammar", "original": "goes", "corrected": "went", "explanation": "Past tense is needed with 'yesterday'.", "position": {"start": 2, "end": 6}}
  ],
  "corrected_sentence": "I went to school yesterday.",
  "overall_quality": 0.6
}`

var _ = Describe("ExtractJSON", func() {
	DescribeTable("applies fence precedence",
		func(raw, expected string) {
			Expect(service.ExtractJSON(raw)).To(Equal(expected))
		},
		Entry("no fence", `  {"a": 1}  `, `{"a": 1}`),
		Entry("json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`),
		Entry("upper case tag", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`),
		Entry("bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`),
		Entry("inline fence", "```{\"a\": 1}```", `{"a": 1}`),
		Entry("prose around the fence", "Here you go:\n```json\n{\"a\": 1}\n```\nHope it helps!", `{"a": 1}`),
		Entry("first fence wins", "```json\n{\"a\": 1}\n```\n```json\n{\"b\": 2}\n```", `{"a": 1}`),
		Entry("unterminated fence", "```json\n{\"a\": 1}", `{"a": 1}`),
		Entry("empty fence", "```json```", ""),
		Entry("tag on same line", "```json {\"a\": 1}```", `{"a": 1}`),
		Entry("tag on same line with multi-line body", "```json {\n\"a\": 1\n}\n```", "{\n\"a\": 1\n}"),
		Entry("word before non-json payload is kept", "```json nope```", "json nope"),
	)
})

var _ = Describe("ParseGrammarResponse", func() {
	expected := model.GrammarAnalysis{
		HasErrors: true,
		Errors: []model.GrammarError{{
			Category:    model.ErrorCategoryGrammar,
			Original:    "goes",
			Corrected:   "went",
			Explanation: "Past tense is needed with 'yesterday'.",
			Position:    &model.Span{Start: 2, End: 6},
		}},
		CorrectedSentence: "I went to school yesterday.",
		OverallQuality:    0.6,
	}

	It("parses unfenced output", func() {
		Expect(service.ParseGrammarResponse(wellFormed)).To(Equal(expected))
	})

	It("parses fenced output to the same result", func() {
		Expect(service.ParseGrammarResponse("```json\n" + wellFormed + "\n```")).To(Equal(expected))
		Expect(service.ParseGrammarResponse("```\n" + wellFormed + "\n```")).To(Equal(expected))
	})

	It("reads a fence whose tag shares the line with the payload", func() {
		result := service.ParseGrammarResponse("```json {\"has_errors\": true, \"corrected_sentence\": \"I went.\", \"errors\": []}```")
		Expect(result.HasErrors).To(BeTrue())
		Expect(result.CorrectedSentence).To(Equal("I went."))
		Expect(result.Errors).To(BeEmpty())
	})

	It("fills defaults for missing fields", func() {
		result := service.ParseGrammarResponse(`{}`)
		Expect(result.HasErrors).To(BeFalse())
		Expect(result.Errors).NotTo(BeNil())
		Expect(result.Errors).To(BeEmpty())
		Expect(result.CorrectedSentence).To(BeEmpty())
		Expect(result.OverallQuality).To(Equal(1.0))
	})

	It("accepts category and span as alternate keys", func() {
		result := service.ParseGrammarResponse(`{"has_errors": true, "errors": [{"category": "Spelling", "original": "recieve", "corrected": "receive", "explanation": "i before e", "span": {"start": 0, "end": 7}}]}`)
		Expect(result.Errors).To(HaveLen(1))
		Expect(result.Errors[0].Category).To(Equal(model.ErrorCategorySpelling))
		Expect(result.Errors[0].Position).To(Equal(&model.Span{Start: 0, End: 7}))
	})

	It("maps unknown categories to grammar", func() {
		result := service.ParseGrammarResponse(`{"has_errors": true, "errors": [{"type": "style", "original": "a", "corrected": "b", "explanation": "c"}]}`)
		Expect(result.Errors[0].Category).To(Equal(model.ErrorCategoryGrammar))
		Expect(result.Errors[0].Position).To(BeNil())
	})

	DescribeTable("degrades to no errors on unreadable output",
		func(raw string) {
			Expect(service.ParseGrammarResponse(raw)).To(Equal(service.NoErrorsAnalysis()))
		},
		Entry("empty", ""),
		Entry("prose", "The sentence looks fine to me."),
		Entry("truncated", `{"has_errors": true, "errors": [{"type": "grammar", "orig`),
		Entry("truncated fenced", "```json\n{\"has_errors\": true, \"corrected_sen"),
		Entry("array instead of object", `[{"has_errors": true}]`),
		Entry("wrong field type", `{"has_errors": "yes"}`),
		Entry("errors not a list", `{"has_errors": true, "errors": "goes -> went"}`),
	)

	It("reports the fallback as has_errors false with an empty list and sentence", func() {
		fallback := service.NoErrorsAnalysis()
		Expect(fallback.HasErrors).To(BeFalse())
		Expect(fallback.Errors).To(BeEmpty())
		Expect(fallback.CorrectedSentence).To(BeEmpty())
	})
})
