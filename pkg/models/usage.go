package models

import "time"

// Usage represents token usage from a model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks token usage for one model call.
type UsageRecord struct {
	ID               int64     `json:"id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	CacheKey         string    `json:"cache_key,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates usage per provider and model.
type UsageSummary struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
}
