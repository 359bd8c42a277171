package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/search"
)

const maxQueryLength = 400

type SearchService interface {
	Search(ctx context.Context, query string) (*model.SearchResponse, error)
}

type searchService struct {
	searcher search.Searcher
}

// NewSearchService wraps searcher, which may be nil when no search API key is
// configured.
func NewSearchService(searcher search.Searcher) SearchService {
	return &searchService{searcher: searcher}
}

func (s *searchService) Search(ctx context.Context, query string) (*model.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if len([]rune(query)) > maxQueryLength {
		return nil, fmt.Errorf("%w: query must be at most %d characters", ErrInvalidInput, maxQueryLength)
	}
	if s.searcher == nil {
		return nil, fmt.Errorf("%w: search is not configured", search.ErrUnavailable)
	}

	resp, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return resp, nil
}
