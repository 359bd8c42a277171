package otel_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/otel"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/config"
)

var _ = Describe("Setup", func() {
	It("is disabled without an endpoint", func() {
		t, err := otel.Setup(context.Background(), config.OTelConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeNil())
	})
})

var _ = Describe("ParseHeaders", func() {
	It("parses comma separated pairs", func() {
		Expect(otel.ParseHeaders("a=1, b = 2,broken,=x")).To(Equal(map[string]string{
			"a": "1",
			"b": "2",
		}))
	})

	It("keeps '=' inside values", func() {
		Expect(otel.ParseHeaders("Authorization=Basic abc==")).To(HaveKeyWithValue("Authorization", "Basic abc=="))
	})

	It("returns an empty map for empty input", func() {
		Expect(otel.ParseHeaders("")).To(BeEmpty())
	})
})
