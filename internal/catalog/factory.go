package catalog

import (
	"context"
	"fmt"
	"time"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/models"
)

// Backends holds the connections a configured source may need. Unused
// fields may be nil.
type Backends struct {
	Postgres      *database.PostgresClient
	Elasticsearch *database.ElasticsearchClient
	Redis         *database.RedisClient
}

// NewFromConfig builds the repository named by cfg.Source, wrapped in a
// Redis read-through when cfg.CacheTTL is set. It returns nil for the
// "none" source.
func NewFromConfig(cfg config.CatalogConfig, backends Backends, log logger.Logger) (Repository, error) {
	var repo Repository
	switch cfg.Source {
	case config.CatalogSourceNone, "":
		return nil, nil
	case config.CatalogSourcePostgres:
		if backends.Postgres == nil {
			return nil, fmt.Errorf("catalog source %q needs a postgres connection", cfg.Source)
		}
		repo = NewPostgresRepository(backends.Postgres.DB, cfg.SearchSize)
	case config.CatalogSourceElasticsearch:
		if backends.Elasticsearch == nil {
			return nil, fmt.Errorf("catalog source %q needs an elasticsearch client", cfg.Source)
		}
		repo = NewElasticRepository(backends.Elasticsearch.Client, cfg.Index, cfg.SearchSize)
	case config.CatalogSourceFile:
		repo = NewFileRepository(cfg.FilePath)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}

	repo = &instrumented{next: repo, timeout: time.Duration(cfg.Timeout) * time.Millisecond}

	if cfg.CacheTTL > 0 && backends.Redis != nil {
		repo = NewCachedRepository(repo, backends.Redis, time.Duration(cfg.CacheTTL)*time.Millisecond, log)
	}
	return repo, nil
}

// instrumented bounds each lookup by timeout and counts outcomes.
type instrumented struct {
	next    Repository
	timeout time.Duration
}

func (r *instrumented) Name() string { return r.next.Name() }

func (r *instrumented) Lookup(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	entries, err := r.next.Lookup(ctx, q)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CatalogLoads.WithLabelValues(r.Name(), status).Inc()
	return entries, err
}
