// internal/workers/ai-conversation/resolve-products/models.go
package resolveproducts

import (
	"assistant-workers/internal/models"
	"assistant-workers/internal/service"
)

type Input struct {
	Titles     []string              `json:"titles"`
	Products   []models.CatalogEntry `json:"products,omitempty"`
	ProductIDs []string              `json:"productIds,omitempty"`
	Query      string                `json:"query,omitempty"`
}

type Output struct {
	Resolutions []service.Resolution `json:"resolutions"`
	// MatchedIDs lists the distinct matched entity ids in title order.
	MatchedIDs []string `json:"matchedIds"`
	Unmatched  []string `json:"unmatched"`
}
