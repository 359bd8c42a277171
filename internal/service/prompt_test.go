package service_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

var _ = Describe("BuildSystemPrompt", func() {
	barista := "Cafe Barista"

	It("uses the free chat template by default", func() {
		prompt := service.BuildSystemPrompt(model.ConversationModeFreeChat, nil, "")
		Expect(prompt).To(ContainSubstring("English only"))
		Expect(prompt).To(ContainSubstring("at most 3 sentences"))
		Expect(prompt).NotTo(ContainSubstring("Reference Information"))
	})

	It("plays the requested character in role play", func() {
		prompt := service.BuildSystemPrompt(model.ConversationModeRolePlaying, &barista, "")
		Expect(prompt).To(ContainSubstring("playing the role of 'Cafe Barista'"))
		Expect(prompt).To(ContainSubstring("at most 3 sentences"))
	})

	It("falls back to free chat when role play has no character", func() {
		prompt := service.BuildSystemPrompt(model.ConversationModeRolePlaying, nil, "")
		Expect(prompt).NotTo(ContainSubstring("playing the role"))
	})

	It("appends reference information when search context is given", func() {
		for _, prompt := range []string{
			service.BuildSystemPrompt(model.ConversationModeFreeChat, nil, "Cold brew is trending."),
			service.BuildSystemPrompt(model.ConversationModeRolePlaying, &barista, "Cold brew is trending."),
		} {
			Expect(prompt).To(HaveSuffix("\n\n## Reference Information:\nCold brew is trending."))
		}
	})

	It("ignores blank search context", func() {
		Expect(service.BuildSystemPrompt(model.ConversationModeFreeChat, nil, "  \n")).NotTo(ContainSubstring("Reference Information"))
	})
})

var _ = Describe("BuildReplyMessages", func() {
	It("orders system, history, then the new user turn", func() {
		history := []model.Message{
			{Role: model.MessageRoleUser, Content: "Hi"},
			{Role: model.MessageRoleAssistant, Content: "Hello! How are you?"},
		}

		msgs := service.BuildReplyMessages("system prompt", history, "I'm fine")

		Expect(msgs).To(Equal([]llm.Message{
			{Role: llm.RoleSystem, Content: "system prompt"},
			{Role: llm.RoleUser, Content: "Hi"},
			{Role: llm.RoleAssistant, Content: "Hello! How are you?"},
			{Role: llm.RoleUser, Content: "I'm fine"},
		}))
	})
})

var _ = Describe("BuildGrammarPrompt", func() {
	It("asks for strict JSON with the analysis schema", func() {
		prompt := service.BuildGrammarPrompt("I goes to school", nil)
		Expect(prompt).To(HavePrefix("Analyze the following English text"))
		Expect(prompt).To(ContainSubstring(`Text: "I goes to school"`))
		Expect(prompt).To(ContainSubstring(`"has_errors"`))
		Expect(prompt).To(ContainSubstring(`"corrected_sentence"`))
		Expect(prompt).To(ContainSubstring("complete text rewritten"))
		Expect(prompt).NotTo(ContainSubstring("Context Rules"))
	})

	It("adds contextual rules when the partner's last message is known", func() {
		prev := "Did you go to the party yesterday?"
		prompt := service.BuildGrammarPrompt("Yes, I did.", &prev)
		Expect(prompt).To(ContainSubstring(`"Did you go to the party yesterday?"`))
		Expect(prompt).To(ContainSubstring("elliptical answers that are natural in conversation are NOT errors"))
		Expect(prompt).To(ContainSubstring("subject-verb agreement"))
		Expect(prompt).To(ContainSubstring("tense consistency"))
		Expect(prompt).To(ContainSubstring("question formation"))
		Expect(prompt).To(ContainSubstring("do not match what was asked"))
	})
})
