package models

// HitMetadata identifies where a retrieved passage came from.
type HitMetadata struct {
	Source  string `json:"source"`
	Page    *int   `json:"page,omitempty"`
	ChunkID string `json:"chunk_id"`
}

// RetrievalHit is one passage returned by the retrieval collaborator.
// Score is a distance: lower means more relevant.
type RetrievalHit struct {
	Text     string      `json:"text"`
	Metadata HitMetadata `json:"metadata"`
	Score    float64     `json:"score"`
}
