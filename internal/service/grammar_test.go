package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/id"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
)

var _ = Describe("GrammarService", func() {
	var (
		ctx       context.Context
		provider  *mockProvider
		mockStore *mockFeedbackStore
		db        *memDB
		svc       service.GrammarService
	)

	settings := service.GrammarSettings{MaxTokens: 1000, Temperature: 0.3}

	BeforeEach(func() {
		ctx = context.Background()
		provider = &mockProvider{}
		mockStore = &mockFeedbackStore{}
		db = newMemDB()
		svc = service.NewGrammarService(provider, mockStore, db.Messages(), settings)
	})

	Describe("Check", func() {
		It("analyzes ad-hoc text without context", func() {
			provider.grammarFn = func(_ context.Context, req llm.Request) (*llm.Response, error) {
				Expect(req.Messages[0].Content).To(ContainSubstring(`Text: "She don't like it"`))
				Expect(req.Messages[0].Content).NotTo(ContainSubstring("Context Rules"))
				return &llm.Response{Content: `{"has_errors": true, "errors": [{"type": "grammar", "original": "don't", "corrected": "doesn't", "explanation": "third person"}], "corrected_sentence": "She doesn't like it"}`}, nil
			}

			analysis, err := svc.Check(ctx, " She don't like it ")
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis.HasErrors).To(BeTrue())
			Expect(analysis.CorrectedSentence).To(Equal("She doesn't like it"))
		})

		It("requires text", func() {
			_, err := svc.Check(ctx, "")
			Expect(err).To(MatchError(service.ErrInvalidInput))
		})

		It("surfaces provider failures", func() {
			provider.grammarFn = func(_ context.Context, _ llm.Request) (*llm.Response, error) {
				return nil, &llm.RateLimitError{Provider: "mock", RetryAfter: time.Minute}
			}

			_, err := svc.Check(ctx, "hello")
			_, limited := llm.IsRateLimited(err)
			Expect(limited).To(BeTrue())
		})
	})

	Describe("SaveFeedback", func() {
		It("links the analysis to the message", func() {
			var saved *model.GrammarFeedback
			mockStore.createFn = func(_ context.Context, fb *model.GrammarFeedback) error {
				saved = fb
				return nil
			}

			fb, err := svc.SaveFeedback(ctx, 77, "I goes", &model.GrammarAnalysis{
				HasErrors:         true,
				CorrectedSentence: "I go",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(fb))
			Expect(fb.ID).NotTo(BeZero())
			Expect(fb.MessageID).To(Equal(int64(77)))
			Expect(fb.OriginalText).To(Equal("I goes"))
			Expect(fb.CorrectedText).To(Equal("I go"))
			Expect(fb.Errors).NotTo(BeNil())
		})
	})

	Describe("GetFeedback", func() {
		It("maps a missing row to ErrFeedbackNotFound", func() {
			_, err := svc.GetFeedback(ctx, 1)
			Expect(err).To(MatchError(service.ErrFeedbackNotFound))
		})

		It("wraps other store failures", func() {
			mockStore.getByMessageIDFn = func(_ context.Context, _ int64) (*model.GrammarFeedback, error) {
				return nil, errors.New("db down")
			}
			_, err := svc.GetFeedback(ctx, 1)
			Expect(err).To(MatchError(ContainSubstring("db down")))
			Expect(errors.Is(err, service.ErrFeedbackNotFound)).To(BeFalse())
		})
	})

	Describe("Stats", func() {
		DescribeTable("translates the range into a lower bound",
			func(timeRange string, days int) {
				var captured *time.Time
				mockStore.statsFn = func(_ context.Context, since *time.Time) (model.GrammarStats, error) {
					captured = since
					return model.GrammarStats{TotalMessages: 4, MessagesWithErrors: 1, ErrorRate: 0.25}, nil
				}

				stats, err := svc.Stats(ctx, timeRange)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.ErrorRate).To(Equal(0.25))

				if days == 0 {
					Expect(captured).To(BeNil())
					return
				}
				Expect(captured).NotTo(BeNil())
				Expect(*captured).To(BeTemporally("~", time.Now().AddDate(0, 0, -days), time.Minute))
			},
			Entry("7 days", "7d", 7),
			Entry("30 days", "30d", 30),
			Entry("90 days", "90D", 90),
			Entry("all time", "all", 0),
			Entry("unspecified", "", 0),
		)

		It("rejects unknown ranges", func() {
			_, err := svc.Stats(ctx, "1y")
			Expect(err).To(MatchError(service.ErrInvalidInput))
		})
	})

	Describe("Backfill", func() {
		var userMsg model.Message

		BeforeEach(func() {
			svc = service.NewGrammarService(provider, db.GrammarFeedback(), db.Messages(), settings)

			conv := &model.Conversation{ID: id.New()}
			Expect(db.Conversations().Create(ctx, conv)).To(Succeed())
			for _, m := range []model.Message{
				{ID: id.New(), ConversationID: conv.ID, Role: model.MessageRoleUser, Content: "Hi"},
				{ID: id.New(), ConversationID: conv.ID, Role: model.MessageRoleAssistant, Content: "Where did you go yesterday?"},
				{ID: id.New(), ConversationID: conv.ID, Role: model.MessageRoleUser, Content: "I goes to school"},
			} {
				Expect(db.Messages().Create(ctx, &m)).To(Succeed())
				userMsg = m
			}
		})

		It("analyzes with the preceding assistant message and saves the result", func() {
			provider.grammarFn = func(_ context.Context, req llm.Request) (*llm.Response, error) {
				Expect(req.Messages[0].Content).To(ContainSubstring(`"Where did you go yesterday?"`))
				return &llm.Response{Content: wentFeedback}, nil
			}

			fb, created, err := svc.Backfill(ctx, userMsg.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(fb.HasErrors).To(BeTrue())

			stored, err := db.GrammarFeedback().GetByMessageID(ctx, userMsg.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(fb.ID))
		})

		It("does nothing when feedback already exists", func() {
			Expect(db.GrammarFeedback().Create(ctx, &model.GrammarFeedback{ID: id.New(), MessageID: userMsg.ID})).To(Succeed())

			_, created, err := svc.Backfill(ctx, userMsg.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(provider.grammarRequests()).To(BeEmpty())
		})

		It("does nothing for a deleted message", func() {
			_, created, err := svc.Backfill(ctx, 12345)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
		})

		It("returns provider failures so the caller can retry", func() {
			provider.grammarFn = func(_ context.Context, _ llm.Request) (*llm.Response, error) {
				return nil, llm.ErrProviderUnavailable
			}

			_, _, err := svc.Backfill(ctx, userMsg.ID)
			Expect(err).To(MatchError(llm.ErrProviderUnavailable))

			_, err = db.GrammarFeedback().GetByMessageID(ctx, userMsg.ID)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
