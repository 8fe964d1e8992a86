package models

// CatalogOffer is a single raw offer as returned by the catalog feed.
// Nothing here is trusted: units, currencies and validity encodings vary
// between upstream providers and are resolved by the normalizer.
type CatalogOffer struct {
	SKU           string   `json:"sku"`
	Title         string   `json:"title"`
	Provider      string   `json:"provider"`
	Countries     []string `json:"countries"`
	DataAmount    float64  `json:"dataAmount"`
	DataUnit      string   `json:"dataUnit"` // "MB" or "GB"
	Unlimited     bool     `json:"unlimited"`
	RawValidity   float64  `json:"rawValidity"` // ambiguous: days or hours
	IsTopUp       bool     `json:"isTopUp"`
	OriginalPrice float64  `json:"originalPrice"`
	Currency      string   `json:"currency"` // "USD", "MNT", ...
}
