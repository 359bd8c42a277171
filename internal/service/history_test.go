package service_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

// alternating builds n messages starting with a user turn.
func alternating(n int) []model.Message {
	msgs := make([]model.Message, n)
	for i := range msgs {
		role := model.MessageRoleUser
		if i%2 == 1 {
			role = model.MessageRoleAssistant
		}
		msgs[i] = model.Message{ID: int64(i + 1), Role: role, Content: fmt.Sprintf("m%d", i+1)}
	}
	return msgs
}

var _ = Describe("WindowHistory", func() {
	DescribeTable("keeps min(M, 2T) of the most recent messages",
		func(m, turns, expected int) {
			window := service.WindowHistory(alternating(m), turns)
			Expect(window).To(HaveLen(expected))
			if expected > 0 {
				Expect(window[len(window)-1].ID).To(Equal(int64(m)))
				Expect(window[0].ID).To(Equal(int64(m - expected + 1)))
			}
		},
		Entry("empty history", 0, 10, 0),
		Entry("fewer than the window", 5, 10, 5),
		Entry("exactly the window", 20, 10, 20),
		Entry("longer than the window", 27, 10, 20),
		Entry("single turn window", 7, 1, 2),
		Entry("zero turns", 7, 0, 0),
	)

	It("returns short histories unchanged and in order", func() {
		prior := alternating(4)
		Expect(service.WindowHistory(prior, 10)).To(Equal(prior))
	})

	It("keeps chronological order when trimming", func() {
		window := service.WindowHistory(alternating(9), 2)
		var ids []int64
		for _, m := range window {
			ids = append(ids, m.ID)
		}
		Expect(ids).To(Equal([]int64{6, 7, 8, 9}))
	})
})

var _ = Describe("PreviousAssistantMessage", func() {
	It("is absent on the first turn", func() {
		Expect(service.PreviousAssistantMessage(nil)).To(BeNil())
	})

	It("is absent when only user messages exist", func() {
		Expect(service.PreviousAssistantMessage([]model.Message{
			{Role: model.MessageRoleUser, Content: "hello"},
		})).To(BeNil())
	})

	It("returns the latest assistant message", func() {
		prev := service.PreviousAssistantMessage(alternating(6))
		Expect(prev).NotTo(BeNil())
		Expect(*prev).To(Equal("m6"))
	})

	It("skips trailing user messages", func() {
		prev := service.PreviousAssistantMessage(alternating(5))
		Expect(prev).NotTo(BeNil())
		Expect(*prev).To(Equal("m4"))
	})
})
