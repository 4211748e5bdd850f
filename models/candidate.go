package models

import "time"

// Candidate is a cached, embedded NFT inventory entry eligible for matching.
// (CollectionID, TokenID) is the deduplication key. Either embedding may be
// nil when the source image or description was unavailable; a candidate with
// neither always scores zero but is still storable.
type Candidate struct {
	CollectionID    string    `json:"collection_id"`
	TokenID         string    `json:"token_id"`
	ContractAddress string    `json:"contract_address"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ImageURL        string    `json:"image_url"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency"`
	ImageEmbedding  []float64 `json:"image_embedding,omitempty"`
	TextEmbedding   []float64 `json:"text_embedding,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Key returns the deduplication key for inventory reconciliation.
func (c *Candidate) Key() string {
	return c.CollectionID + "/" + c.TokenID
}

// HasEmbedding reports whether at least one embedding is present.
func (c *Candidate) HasEmbedding() bool {
	return len(c.ImageEmbedding) > 0 || len(c.TextEmbedding) > 0
}
