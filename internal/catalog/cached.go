package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"assistant-workers/internal/common/database"
	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/models"

	"github.com/zeebo/xxh3"
)

const (
	productKeyPrefix = "catalog:product:"
	queryKeyPrefix   = "catalog:query:"
)

// CachedRepository reads through Redis. Entries are cached one key per
// product id; text and default listings are cached as whole lists. Cache
// failures are logged and never fail a lookup.
type CachedRepository struct {
	next   Repository
	cache  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedRepository puts a Redis read-through cache in front of next.
func NewCachedRepository(next Repository, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"catalogSource": next.Name()}),
	}
}

func (r *CachedRepository) Name() string { return r.next.Name() }

func (r *CachedRepository) Lookup(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	if len(q.IDs) > 0 {
		return r.lookupIDs(ctx, q.IDs)
	}
	return r.lookupList(ctx, q)
}

func (r *CachedRepository) lookupIDs(ctx context.Context, ids []string) ([]models.CatalogEntry, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKeyPrefix + id
	}

	found := make(map[string]models.CatalogEntry, len(ids))
	err := r.cache.MGetJSON(ctx, keys, func(i int, raw []byte) error {
		var e models.CatalogEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		found[ids[i]] = e
		return nil
	})
	if err != nil {
		r.warn("catalog cache read failed", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		metrics.CatalogLoads.WithLabelValues(r.Name(), "cache_hit").Inc()
		return orderByIDs(ids, mapValues(found)), nil
	}

	loaded, err := r.next.Lookup(ctx, Query{IDs: missing})
	if err != nil {
		return nil, err
	}
	for _, e := range loaded {
		found[e.ID] = e
		if err := r.cache.SetJSON(ctx, productKeyPrefix+e.ID, e, r.ttl); err != nil {
			r.warn("catalog cache write failed", err)
		}
	}
	return orderByIDs(ids, mapValues(found)), nil
}

func (r *CachedRepository) lookupList(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	key := listKey(r.Name(), q.Text)

	var cached []models.CatalogEntry
	err := r.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		metrics.CatalogLoads.WithLabelValues(r.Name(), "cache_hit").Inc()
		return cached, nil
	}
	if !errors.Is(err, database.ErrCacheMiss) {
		r.warn("catalog cache read failed", err)
	}

	entries, err := r.next.Lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, key, entries, r.ttl); err != nil {
		r.warn("catalog cache write failed", err)
	}
	return entries, nil
}

func (r *CachedRepository) warn(msg string, err error) {
	stdErr := apperrors.NewCacheUnavailableError(err)
	r.logger.Warn(msg, map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"error":     err,
	})
}

func listKey(source, text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return queryKeyPrefix + source + ":" + strconv.FormatUint(xxh3.HashString(normalized), 16)
}

func mapValues(m map[string]models.CatalogEntry) []models.CatalogEntry {
	out := make([]models.CatalogEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}
