package dto

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}
