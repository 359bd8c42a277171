package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/search"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

var _ = Describe("SearchService", func() {
	ctx := context.Background()

	It("trims the query before searching", func() {
		searcher := &mockSearcher{searchFn: func(_ context.Context, query string) (*model.SearchResponse, error) {
			Expect(query).To(Equal("coffee trends"))
			return &model.SearchResponse{Query: query, Results: []model.SearchResult{{Title: "t"}}}, nil
		}}

		resp, err := service.NewSearchService(searcher).Search(ctx, "  coffee trends ")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Results).To(HaveLen(1))
	})

	It("rejects empty and oversized queries", func() {
		svc := service.NewSearchService(&mockSearcher{})

		_, err := svc.Search(ctx, " ")
		Expect(err).To(MatchError(service.ErrInvalidInput))

		_, err = svc.Search(ctx, strings.Repeat("q", 401))
		Expect(err).To(MatchError(service.ErrInvalidInput))
	})

	It("reports unavailable when search is not configured", func() {
		_, err := service.NewSearchService(nil).Search(ctx, "coffee")
		Expect(err).To(MatchError(search.ErrUnavailable))
	})

	It("passes provider failures through", func() {
		searcher := &mockSearcher{searchFn: func(_ context.Context, _ string) (*model.SearchResponse, error) {
			return nil, errors.Join(search.ErrUnavailable, errors.New("502"))
		}}

		_, err := service.NewSearchService(searcher).Search(ctx, "coffee")
		Expect(err).To(MatchError(search.ErrUnavailable))
	})
})
