package handler_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/handler"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/search"
)

var _ = Describe("SearchHandler", func() {
	var (
		router *gin.Engine
		svc    *mockSearchService
	)

	BeforeEach(func() {
		router = gin.New()
		svc = &mockSearchService{}
		router.POST("/search/", handler.NewSearchHandler(svc).Search)
	})

	It("returns the result set", func() {
		svc.searchFn = func(_ context.Context, query string) (*model.SearchResponse, error) {
			return &model.SearchResponse{
				Query:   query,
				Results: []model.SearchResult{{Title: "Coffee", URL: "https://example.com", Snippet: "beans"}},
			}, nil
		}

		w := performRequest(router, http.MethodPost, "/search/", map[string]string{"query": "coffee"})

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decodeBody(w)
		Expect(resp["query"]).To(Equal("coffee"))
		Expect(resp["results"]).To(HaveLen(1))
	})

	It("returns 400 without a query", func() {
		w := performRequest(router, http.MethodPost, "/search/", `{}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 502 when the search provider fails", func() {
		svc.searchFn = func(_ context.Context, _ string) (*model.SearchResponse, error) {
			return nil, fmt.Errorf("%w: status 503", search.ErrUnavailable)
		}

		w := performRequest(router, http.MethodPost, "/search/", map[string]string{"query": "coffee"})

		Expect(w.Code).To(Equal(http.StatusBadGateway))
		Expect(decodeBody(w)["error"]).To(Equal("search is unavailable"))
	})
})
