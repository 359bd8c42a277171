package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/handler"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		buf = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

var _ = Describe("ConversationHandler", func() {
	var (
		router *gin.Engine
		svc    *mockConversationService
	)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		router = gin.New()
		svc = &mockConversationService{}
		h := handler.NewConversationHandler(svc)
		router.POST("/conversations/start/", h.Start)
		router.POST("/conversations/:id/message/", h.SendMessage)
		router.GET("/conversations/", h.List)
		router.GET("/conversations/:id/", h.Get)
		router.PATCH("/conversations/:id/", h.Rename)
		router.DELETE("/conversations/:id/", h.Delete)
		router.GET("/conversations/:id/messages/", h.Messages)
		router.PUT("/conversations/:id/end/", h.End)
	})

	Describe("Start", func() {
		It("returns the first turn with string ids", func() {
			svc.startFn = func(_ context.Context, params service.StartParams) (*service.StartResult, error) {
				Expect(params.FirstMessage).To(Equal("Hi there"))
				Expect(params.SearchContext).To(Equal("news"))
				Expect(params.Mode).To(Equal(model.ConversationModeFreeChat))
				return &service.StartResult{
					Conversation:     &model.Conversation{ID: 100, Mode: model.ConversationModeFreeChat, MessageCount: 2},
					UserMessage:      &model.Message{ID: 101, Role: model.MessageRoleUser},
					AssistantMessage: &model.Message{ID: 102, Role: model.MessageRoleAssistant, Content: "Hello!"},
					GrammarFeedback:  &model.GrammarFeedback{ID: 5, MessageID: 101, Errors: []model.GrammarError{}},
				}, nil
			}

			w := performRequest(router, http.MethodPost, "/conversations/start/", map[string]string{
				"first_message":     "Hi there",
				"search_context":    "news",
				"conversation_type": "FREE_CHAT",
			})

			Expect(w.Code).To(Equal(http.StatusCreated))
			resp := decodeBody(w)
			Expect(resp["conversation_id"]).To(Equal("100"))
			Expect(resp["message_id"]).To(Equal("102"))
			Expect(resp["user_message_id"]).To(Equal("101"))
			Expect(resp["response"]).To(Equal("Hello!"))
			Expect(resp["turn_count"]).To(BeEquivalentTo(1))
			Expect(resp["grammar_feedback"]).To(HaveKeyWithValue("message_id", "101"))
		})

		It("returns null feedback when the critic produced none", func() {
			svc.startFn = func(_ context.Context, _ service.StartParams) (*service.StartResult, error) {
				return &service.StartResult{
					Conversation:     &model.Conversation{ID: 1, MessageCount: 2},
					UserMessage:      &model.Message{ID: 2},
					AssistantMessage: &model.Message{ID: 3, Content: "Hi"},
				}, nil
			}

			w := performRequest(router, http.MethodPost, "/conversations/start/", map[string]string{"first_message": "Hi"})

			Expect(w.Code).To(Equal(http.StatusCreated))
			resp := decodeBody(w)
			Expect(resp).To(HaveKey("grammar_feedback"))
			Expect(resp["grammar_feedback"]).To(BeNil())
		})

		It("returns 400 when first_message is missing", func() {
			w := performRequest(router, http.MethodPost, "/conversations/start/", `{}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 for input the service rejects", func() {
			svc.startFn = func(_ context.Context, _ service.StartParams) (*service.StartResult, error) {
				return nil, fmt.Errorf("%w: role_character is required for role play", service.ErrInvalidInput)
			}

			w := performRequest(router, http.MethodPost, "/conversations/start/", map[string]string{
				"first_message":     "Hi",
				"conversation_type": "ROLE_PLAYING",
			})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["error"]).To(ContainSubstring("role_character"))
		})

		It("returns 429 with retry guidance when the provider is rate limited", func() {
			svc.startFn = func(_ context.Context, _ service.StartParams) (*service.StartResult, error) {
				return nil, fmt.Errorf("generating reply: %w", &llm.RateLimitError{Provider: "openrouter", RetryAfter: 1500 * time.Millisecond})
			}

			w := performRequest(router, http.MethodPost, "/conversations/start/", map[string]string{"first_message": "Hi"})

			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
			Expect(w.Header().Get("Retry-After")).To(Equal("2"))
			Expect(decodeBody(w)["retry_after"]).To(BeEquivalentTo(2))
		})

		It("returns 502 when the provider is unreachable", func() {
			svc.startFn = func(_ context.Context, _ service.StartParams) (*service.StartResult, error) {
				return nil, fmt.Errorf("generating reply: %w", llm.ErrProviderUnavailable)
			}

			w := performRequest(router, http.MethodPost, "/conversations/start/", map[string]string{"first_message": "Hi"})
			Expect(w.Code).To(Equal(http.StatusBadGateway))
		})

		It("hides unexpected errors behind a generic message", func() {
			svc.startFn = func(_ context.Context, _ service.StartParams) (*service.StartResult, error) {
				return nil, errors.New("pq: relation \"conversations\" does not exist")
			}

			w := performRequest(router, http.MethodPost, "/conversations/start/", map[string]string{"first_message": "Hi"})

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(w)["error"]).To(Equal("failed to start conversation"))
		})
	})

	Describe("SendMessage", func() {
		It("returns the reply and the turn count", func() {
			svc.continueFn = func(_ context.Context, conversationID int64, text string) (*service.ContinueResult, error) {
				Expect(conversationID).To(Equal(int64(42)))
				Expect(text).To(Equal("I went home"))
				return &service.ContinueResult{
					Conversation:     &model.Conversation{ID: 42, MessageCount: 4},
					UserMessage:      &model.Message{ID: 7},
					AssistantMessage: &model.Message{ID: 8, Content: "Nice!"},
					TurnCount:        2,
				}, nil
			}

			w := performRequest(router, http.MethodPost, "/conversations/42/message/", map[string]string{"message": "I went home"})

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decodeBody(w)
			Expect(resp["message_id"]).To(Equal("8"))
			Expect(resp["user_message_id"]).To(Equal("7"))
			Expect(resp["turn_count"]).To(BeEquivalentTo(2))
		})

		It("returns 404 for an unknown conversation", func() {
			svc.continueFn = func(_ context.Context, _ int64, _ string) (*service.ContinueResult, error) {
				return nil, service.ErrConversationNotFound
			}

			w := performRequest(router, http.MethodPost, "/conversations/42/message/", map[string]string{"message": "hi"})
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed id", func() {
			w := performRequest(router, http.MethodPost, "/conversations/abc/message/", map[string]string{"message": "hi"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("List", func() {
		It("passes paging through and derives turn counts", func() {
			svc.listFn = func(_ context.Context, limit, offset int) ([]model.Conversation, error) {
				Expect(limit).To(Equal(10))
				Expect(offset).To(Equal(20))
				return []model.Conversation{{ID: 1, MessageCount: 6, Status: model.ConversationStatusActive, CreatedAt: now}}, nil
			}

			w := performRequest(router, http.MethodGet, "/conversations/?limit=10&offset=20", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp []map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp).To(HaveLen(1))
			Expect(resp[0]["id"]).To(Equal("1"))
			Expect(resp[0]["turn_count"]).To(BeEquivalentTo(3))
		})

		It("rejects an out-of-range limit", func() {
			w := performRequest(router, http.MethodGet, "/conversations/?limit=1000", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Get", func() {
		It("returns 404 when missing", func() {
			w := performRequest(router, http.MethodGet, "/conversations/9/", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decodeBody(w)["error"]).To(Equal("conversation not found"))
		})
	})

	Describe("Messages", func() {
		It("embeds grammar feedback on user messages", func() {
			svc.messagesFn = func(_ context.Context, conversationID int64, _, _ int) ([]model.Message, error) {
				return []model.Message{
					{ID: 1, ConversationID: conversationID, Role: model.MessageRoleUser, Content: "I goes",
						GrammarFeedback: &model.GrammarFeedback{ID: 3, MessageID: 1, HasErrors: true}},
					{ID: 2, ConversationID: conversationID, Role: model.MessageRoleAssistant, Content: "Where?"},
				}, nil
			}

			w := performRequest(router, http.MethodGet, "/conversations/5/messages/", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp []map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp).To(HaveLen(2))
			Expect(resp[0]["grammar_feedback"]).To(HaveKeyWithValue("has_errors", true))
			Expect(resp[1]).NotTo(HaveKey("grammar_feedback"))
		})
	})

	Describe("End", func() {
		It("returns the completed conversation", func() {
			svc.endFn = func(_ context.Context, id int64) (*model.Conversation, error) {
				return &model.Conversation{ID: id, Status: model.ConversationStatusCompleted}, nil
			}

			w := performRequest(router, http.MethodPut, "/conversations/5/end/", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["status"]).To(Equal("COMPLETED"))
		})
	})

	Describe("Rename", func() {
		It("renames the conversation", func() {
			svc.renameFn = func(_ context.Context, id int64, title string) (*model.Conversation, error) {
				return &model.Conversation{ID: id, Title: &title}, nil
			}

			w := performRequest(router, http.MethodPatch, "/conversations/5/", map[string]string{"title": "Travel talk"})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["title"]).To(Equal("Travel talk"))
		})

		It("rejects an empty title", func() {
			w := performRequest(router, http.MethodPatch, "/conversations/5/", map[string]string{"title": ""})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Delete", func() {
		It("returns 204", func() {
			var deleted int64
			svc.deleteFn = func(_ context.Context, id int64) error {
				deleted = id
				return nil
			}

			w := performRequest(router, http.MethodDelete, "/conversations/5/", nil)

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(deleted).To(Equal(int64(5)))
		})

		It("returns 404 when missing", func() {
			svc.deleteFn = func(_ context.Context, _ int64) error {
				return service.ErrConversationNotFound
			}

			w := performRequest(router, http.MethodDelete, "/conversations/5/", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
