package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// ErrUnavailable wraps every failure to reach or understand the search API.
var ErrUnavailable = errors.New("search provider unavailable")

const (
	snippetLength = 200
	searchDepth   = "basic"
)

type Searcher interface {
	Search(ctx context.Context, query string) (*model.SearchResponse, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

type tavilyClient struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewTavilyClient(cfg Config) Searcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &tavilyClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func (c *tavilyClient) Search(ctx context.Context, query string) (*model.SearchResponse, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.cfg.APIKey,
		Query:       query,
		SearchDepth: searchDepth,
		MaxResults:  c.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.WarnContext(ctx, "tavily search failed",
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrUnavailable, err)
	}

	slog.DebugContext(ctx, "tavily search completed",
		"results", len(decoded.Results),
		"duration_ms", time.Since(start).Milliseconds())

	return c.format(query, decoded), nil
}

func (c *tavilyClient) format(query string, resp tavilyResponse) *model.SearchResponse {
	results := make([]model.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, model.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       snippet(r.Content),
			PublishedDate: parsePublished(r.PublishedDate),
			Score:         r.Score,
		})
	}
	return &model.SearchResponse{
		Query:     query,
		Results:   results,
		Timestamp: c.now().UTC(),
	}
}

func snippet(content string) string {
	if utf8.RuneCountInString(content) <= snippetLength {
		return content
	}
	return string([]rune(content)[:snippetLength])
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parsePublished returns nil for dates it cannot read rather than failing the search.
func parsePublished(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
