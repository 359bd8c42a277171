package service

import (
	"fmt"
	"strings"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// Replies are kept short so learners can keep up.
const replySentenceLimit = 3

const freeChatPrompt = `You are a friendly English conversation partner helping a learner practice.

## Role:
- Hold a natural, everyday conversation in English
- Answer questions about grammar, vocabulary and expressions when asked
- Introduce practical expressions the learner can reuse

## Conversation Style:
- Reply in English only, even if the learner writes in another language
- Stay warm and encouraging
- Draw on the reference information below when it is provided
- Keep the conversation moving the way a real person would
- **IMPORTANT: Keep every reply to at most %d sentences**`

const rolePlayPrompt = `You are an English conversation partner playing the role of '%[1]s'.

## Role Guidelines:
1. Stay in character as '%[1]s' for the whole conversation
2. Use the vocabulary and expressions someone in this role would use
3. Lead the scene so it feels like a real situation

## Conversation Rules:
- Move the scenario forward with questions that fit the situation
- Invent realistic details that suit the role
- **IMPORTANT: Keep every reply to at most %[2]d sentences**

## Scenario Examples:
- Cafe barista: greet the customer, recommend drinks, take the order, chat while preparing it, handle payment
- Job interviewer: welcome the candidate, ask for an introduction, discuss experience, pose situational questions, invite questions
- English teacher: practice daily conversation, introduce new expressions, explain grammar, review homework
- Hotel front desk: check the guest in, describe the room and facilities, handle requests, check the guest out`

// BuildSystemPrompt picks the reply template for mode. searchContext is only
// passed on the first turn of a conversation.
func BuildSystemPrompt(mode model.ConversationMode, roleCharacter *string, searchContext string) string {
	var prompt string
	if mode == model.ConversationModeRolePlaying && roleCharacter != nil && *roleCharacter != "" {
		prompt = fmt.Sprintf(rolePlayPrompt, *roleCharacter, replySentenceLimit)
	} else {
		prompt = fmt.Sprintf(freeChatPrompt, replySentenceLimit)
	}

	if strings.TrimSpace(searchContext) != "" {
		prompt += "\n\n## Reference Information:\n" + searchContext
	}
	return prompt
}

// BuildReplyMessages lays out system prompt, history and the new user turn in
// the order the provider expects.
func BuildReplyMessages(systemPrompt string, history []model.Message, userInput string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: toLLMRole(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userInput})
	return messages
}

func toLLMRole(role model.MessageRole) llm.Role {
	switch role {
	case model.MessageRoleAssistant:
		return llm.RoleAssistant
	case model.MessageRoleSystem:
		return llm.RoleSystem
	default:
		return llm.RoleUser
	}
}

const grammarContextRules = `The learner is replying to this message from their conversation partner:
"%s"

## Context Rules:
- Short or elliptical answers that are natural in conversation are NOT errors ("Yes, I did.", "At home.", "Coffee, please.")
- Do not ask for a full sentence where a natural reply would not use one
- Still flag genuine mistakes: subject-verb agreement, tense consistency with the question, question formation, and answers that do not match what was asked
`

const grammarPromptTemplate = `Analyze the following English text written by a language learner.

%sText: "%s"

## Instructions:
- List each discrete mistake with its category: grammar, word_choice, expression, spelling or punctuation
- Give the character offsets of each mistake in "position" when you can
- "corrected_sentence" must be the complete text rewritten as a natural, logically coherent utterance
- Fix obvious typos or stray tokens in "corrected_sentence" even if you do not list them as errors
- If there are no mistakes, set "has_errors" to false, return an empty "errors" array and repeat the text as "corrected_sentence"
- Keep explanations short and helpful

Respond with a single JSON object only, matching this JSON schema:
%s`

// BuildGrammarPrompt builds the critic prompt for text. previousAssistant is
// the partner message text replies to, if any.
func BuildGrammarPrompt(text string, previousAssistant *string) string {
	contextBlock := ""
	if previousAssistant != nil && strings.TrimSpace(*previousAssistant) != "" {
		contextBlock = fmt.Sprintf(grammarContextRules, *previousAssistant) + "\n"
	}
	return fmt.Sprintf(grammarPromptTemplate, contextBlock, text, llm.SchemaJSON[model.GrammarAnalysis]())
}
