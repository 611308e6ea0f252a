package models

// CatalogEntry is a product the assistant may recommend. Entries are owned by the
// caller and only read while a reply is being annotated.
type CatalogEntry struct {
	ID         string   `json:"id" yaml:"id"`
	Title      string   `json:"title" yaml:"title"`
	Price      *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Currency   string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	Category   string   `json:"category,omitempty" yaml:"category,omitempty"`
	Activities []string `json:"activities,omitempty" yaml:"activities,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	ProductURL string   `json:"productUrl,omitempty" yaml:"product_url,omitempty"`
}

// ProductSnippet mirrors what the chat backend ships next to a reply.
type ProductSnippet struct {
	CatalogEntry
	RelevanceScore float64 `json:"relevanceScore"`
	Reason         string  `json:"reason,omitempty"`
}
