package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticRepository searches a products index. Documents carry the
// CatalogEntry JSON shape; the document _id fills in a missing id.
type ElasticRepository struct {
	es    *elasticsearch.Client
	index string
	size  int
}

// NewElasticRepository searches index, returning at most size hits.
func NewElasticRepository(es *elasticsearch.Client, index string, size int) *ElasticRepository {
	if index == "" {
		index = "products"
	}
	if size <= 0 {
		size = 20
	}
	return &ElasticRepository{es: es, index: index, size: size}
}

func (r *ElasticRepository) Name() string { return "elasticsearch" }

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string              `json:"_id"`
			Source models.CatalogEntry `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *ElasticRepository) buildQuery(q Query) map[string]interface{} {
	switch {
	case len(q.IDs) > 0:
		return map[string]interface{}{
			"size": len(q.IDs),
			"query": map[string]interface{}{
				"ids": map[string]interface{}{"values": q.IDs},
			},
		}
	case strings.TrimSpace(q.Text) != "":
		return map[string]interface{}{
			"size": r.size,
			"query": map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q.Text,
					"fields": []string{"title^3", "category", "activities"},
				},
			},
		}
	default:
		return map[string]interface{}{
			"size":  r.size,
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
			"sort":  []interface{}{map[string]interface{}{"_doc": "asc"}},
		}
	}
}

func (r *ElasticRepository) Lookup(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	body, err := json.Marshal(r.buildQuery(q))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{r.index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, r.es)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewCatalogTimeoutError(r.Name())
		}
		return nil, apperrors.NewCatalogSearchFailedError(r.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(r.index)
	}
	if res.IsError() {
		return nil, apperrors.NewCatalogSearchFailedError(r.index, fmt.Errorf("search returned %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewCatalogSearchFailedError(r.index, fmt.Errorf("decode response: %w", err))
	}

	entries := make([]models.CatalogEntry, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		e := hit.Source
		if e.ID == "" {
			e.ID = hit.ID
		}
		entries = append(entries, e)
	}

	if len(q.IDs) > 0 {
		return orderByIDs(q.IDs, entries), nil
	}
	return entries, nil
}
