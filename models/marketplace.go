package models

// Boundary types for third-party marketplace payloads. External JSON is parsed
// into these at the client layer; absent or malformed fields surface as
// explicit errors there, never as raw map lookups downstream.

// Listing is one active marketplace listing.
type Listing struct {
	CollectionSlug  string  `json:"collection_slug"`
	ContractAddress string  `json:"contract_address"`
	TokenID         string  `json:"token_id"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
}

// Metadata is the descriptive payload for a single NFT.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// PriceQuote is the best current listing price for a single NFT.
type PriceQuote struct {
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}
