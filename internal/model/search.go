package model

import "time"

type SearchResult struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Snippet       string     `json:"snippet"`
	PublishedDate *time.Time `json:"published_date"`
	Score         float64    `json:"score"`
}

type SearchResponse struct {
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
}
