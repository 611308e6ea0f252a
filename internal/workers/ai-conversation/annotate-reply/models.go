// internal/workers/ai-conversation/annotate-reply/models.go
package annotatereply

import (
	"assistant-workers/internal/annotate"
	"assistant-workers/internal/models"
	"assistant-workers/internal/service"
)

type Input struct {
	Message    interface{}           `json:"message"`
	Products   []models.CatalogEntry `json:"products,omitempty"`
	ProductIDs []string              `json:"productIds,omitempty"`
	Query      string                `json:"query,omitempty"`
}

func (in *Input) request() service.Request {
	return service.Request{
		Message:    in.Message,
		Products:   in.Products,
		ProductIDs: in.ProductIDs,
		Query:      in.Query,
	}
}

type Output struct {
	AnnotationID       string                    `json:"annotationId"`
	Segments           []annotate.Segment        `json:"segments"`
	Recommendations    []annotate.Recommendation `json:"recommendations"`
	RenderMode         annotate.RenderMode       `json:"renderMode"`
	HasRecommendations bool                      `json:"hasRecommendations"`
	CatalogVersion     string                    `json:"catalogVersion"`
}
