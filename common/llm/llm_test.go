package llm_test

import (
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
)

var _ = Describe("ParseProviderKey", func() {
	DescribeTable("accepts known keys case-insensitively",
		func(input string, expected llm.ProviderKey) {
			key, err := llm.ParseProviderKey(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal(expected))
		},
		Entry("openrouter", "openrouter", llm.ProviderOpenRouter),
		Entry("ollama upper case", "OLLAMA", llm.ProviderOllama),
		Entry("anthropic padded", " anthropic ", llm.ProviderAnthropic),
	)

	It("rejects unknown keys with a configuration error listing the supported ones", func() {
		_, err := llm.ParseProviderKey("gemini")
		Expect(err).To(MatchError(llm.ErrConfiguration))
		Expect(err.Error()).To(ContainSubstring("openrouter, ollama, anthropic"))
	})
})

var _ = Describe("New", func() {
	It("builds the selected provider", func() {
		p, err := llm.New(llm.Config{
			Provider: "ollama",
			Ollama:   llm.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3.1"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("ollama"))
		Expect(p.Model()).To(Equal("llama3.1"))
	})

	It("fails fast when the selected provider lacks credentials", func() {
		_, err := llm.New(llm.Config{
			Provider:   "openrouter",
			OpenRouter: llm.OpenRouterConfig{Model: "some/model"},
		})
		Expect(err).To(MatchError(llm.ErrConfiguration))
		Expect(err.Error()).To(ContainSubstring("openrouter"))
	})

	It("fails fast for anthropic without an api key", func() {
		_, err := llm.New(llm.Config{
			Provider:  "anthropic",
			Anthropic: llm.AnthropicConfig{Model: "claude"},
		})
		Expect(err).To(MatchError(llm.ErrConfiguration))
	})

	It("fails fast for an unknown provider", func() {
		_, err := llm.New(llm.Config{Provider: "bard"})
		Expect(err).To(MatchError(llm.ErrConfiguration))
	})
})

var _ = Describe("ValidateConfig", func() {
	It("never needs the network", func() {
		p := llm.NewOllamaProvider(llm.OllamaConfig{BaseURL: "http://127.0.0.1:1", Model: "m"}, time.Second)
		Expect(p.ValidateConfig()).To(BeTrue())

		p = llm.NewOllamaProvider(llm.OllamaConfig{Model: "m"}, time.Second)
		Expect(p.ValidateConfig()).To(BeFalse())
	})
})

var _ = Describe("RateLimitError", func() {
	It("matches ErrRateLimited and keeps its cause", func() {
		cause := errors.New("429 from upstream")
		err := fmt.Errorf("generating reply: %w", &llm.RateLimitError{
			Provider:   "openrouter",
			RetryAfter: 30 * time.Second,
			Err:        cause,
		})

		Expect(errors.Is(err, llm.ErrRateLimited)).To(BeTrue())
		Expect(errors.Is(err, cause)).To(BeTrue())

		rl, ok := llm.IsRateLimited(err)
		Expect(ok).To(BeTrue())
		Expect(rl.RetryAfter).To(Equal(30 * time.Second))
	})

	It("is not reported for other failures", func() {
		_, ok := llm.IsRateLimited(llm.ErrProviderUnavailable)
		Expect(ok).To(BeFalse())
	})
})

type sampleAnalysis struct {
	HasErrors bool   `json:"has_errors"`
	Corrected string `json:"corrected_sentence"`
}

var _ = Describe("SchemaJSON", func() {
	It("renders the reflected properties", func() {
		schema := llm.SchemaJSON[sampleAnalysis]()
		Expect(schema).To(ContainSubstring(`"has_errors"`))
		Expect(schema).To(ContainSubstring(`"corrected_sentence"`))
		Expect(schema).NotTo(ContainSubstring(`$ref`))
	})
})
