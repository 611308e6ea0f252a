// Package service runs annotation for the job workers and the HTTP API:
// input coercion, catalog loading, result memoisation and metrics.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"assistant-workers/internal/annotate"
	"assistant-workers/internal/catalog"
	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/observability"
	"assistant-workers/internal/models"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"
)

const memoKeyPrefix = "annotate:v1:"

// Request is one reply to annotate. Message may be any JSON value; only
// strings are scanned. Products, when present, are the catalog; otherwise
// ProductIDs or Query select entries from the configured repository.
type Request struct {
	Message    any                   `json:"message"`
	Products   []models.CatalogEntry `json:"products,omitempty"`
	ProductIDs []string              `json:"productIds,omitempty"`
	Query      string                `json:"query,omitempty"`
}

// Response is an annotation result plus catalog and cache details.
type Response struct {
	ID string `json:"id"`
	*annotate.Result
	HasRecommendations bool   `json:"hasRecommendations"`
	CatalogVersion     string `json:"catalogVersion"`
	Cached             bool   `json:"cached"`

	// Catalog is what recommendations were resolved against.
	Catalog []models.CatalogEntry `json:"-"`
}

// Resolution is the outcome of resolving one title.
type Resolution struct {
	Title         string               `json:"title"`
	MatchedEntity *models.CatalogEntry `json:"matchedEntity"`
	MatchTier     annotate.MatchTier   `json:"matchTier"`
}

// Config holds the service settings taken from the annotation and http sections.
type Config struct {
	Annotation       annotate.Options
	NormalizeUnicode bool
	ResultCacheTTL   time.Duration
	MaxBatchSize     int
	BatchConcurrency int
}

// ConfigFrom maps the application config onto service settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Annotation: annotate.Options{
			CurrencySymbol:    cfg.Annotation.CurrencySymbol,
			ProximityWindow:   cfg.Annotation.ProximityWindow,
			MinTitleLength:    cfg.Annotation.MinTitleLength,
			MinKeywordLength:  cfg.Annotation.MinKeywordLength,
			MajorityThreshold: cfg.Annotation.MajorityThreshold,
		},
		NormalizeUnicode: cfg.HTTP.NormalizeUnicode,
		ResultCacheTTL:   time.Duration(cfg.Annotation.ResultCacheTTL) * time.Millisecond,
		MaxBatchSize:     cfg.HTTP.MaxBatchSize,
		BatchConcurrency: cfg.HTTP.BatchConcurrency,
	}
}

// Service loads catalogs, annotates replies and memoizes results.
type Service struct {
	cfg       Config
	annotator *annotate.Annotator
	catalog   catalog.Repository
	cache     *database.RedisClient
	logger    logger.Logger
	obs       *observability.Observability
}

// New builds a service. repo, cache and obs may be nil.
func New(cfg Config, repo catalog.Repository, cache *database.RedisClient, log logger.Logger, obs *observability.Observability) *Service {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 50
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	return &Service{
		cfg:       cfg,
		annotator: annotate.New(cfg.Annotation),
		catalog:   repo,
		cache:     cache,
		logger:    log,
		obs:       obs,
	}
}

// Annotate annotates one reply against the catalog the request names.
func (s *Service) Annotate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	text, isText := req.Message.(string)
	if !isText {
		res := s.annotator.AnnotateValue(req.Message, nil)
		return s.finish(ctx, res, nil, "", false, start), nil
	}
	if s.cfg.NormalizeUnicode {
		text = norm.NFC.String(text)
	}
	// Blank replies cannot carry recommendations; skip the catalog but keep the text.
	if strings.TrimSpace(text) == "" {
		res := s.annotator.Annotate(text, nil)
		return s.finish(ctx, res, nil, "", false, start), nil
	}

	entries, err := s.loadCatalog(ctx, req)
	if err != nil {
		return nil, err
	}
	version := catalog.Version(entries)

	key := memoKey(text, version)
	if res, ok := s.lookupMemo(ctx, key, entries); ok {
		return s.finish(ctx, res, entries, version, true, start), nil
	}

	res := s.annotator.Annotate(text, entries)
	s.recordExtraction(res)
	s.storeMemo(ctx, key, res)

	return s.finish(ctx, res, entries, version, false, start), nil
}

// ResolveTitles resolves each title against the request's catalog.
func (s *Service) ResolveTitles(ctx context.Context, titles []string, req Request) ([]Resolution, error) {
	entries, err := s.loadCatalog(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]Resolution, len(titles))
	for i, title := range titles {
		if s.cfg.NormalizeUnicode {
			title = norm.NFC.String(title)
		}
		entry, tier := s.annotator.Resolver().ResolveWithTier(title, entries)
		out[i] = Resolution{Title: title, MatchedEntity: entry, MatchTier: tier}
		metrics.CatalogMatches.WithLabelValues(string(tier)).Inc()
	}

	s.logger.Info("titles resolved", map[string]interface{}{
		"titles":  len(titles),
		"catalog": len(entries),
	})
	return out, nil
}

func (s *Service) loadCatalog(ctx context.Context, req Request) ([]models.CatalogEntry, error) {
	if len(req.Products) > 0 {
		return req.Products, nil
	}
	wantsLookup := len(req.ProductIDs) > 0 || strings.TrimSpace(req.Query) != ""
	if s.catalog == nil {
		if wantsLookup {
			return nil, apperrors.NewCatalogUnavailableError("productIds or query given but no catalog source is configured")
		}
		return nil, nil
	}

	entries, err := s.catalog.Lookup(ctx, catalog.Query{IDs: req.ProductIDs, Text: req.Query})
	if err != nil {
		s.logger.Error("catalog lookup failed", map[string]interface{}{
			"source":     s.catalog.Name(),
			"productIds": len(req.ProductIDs),
			"error":      err,
		})
		return nil, err
	}
	return entries, nil
}

func (s *Service) lookupMemo(ctx context.Context, key string, entries []models.CatalogEntry) (*annotate.Result, bool) {
	if s.cache == nil || s.cfg.ResultCacheTTL <= 0 {
		return nil, false
	}

	var res annotate.Result
	err := s.cache.GetJSON(ctx, key, &res)
	switch {
	case err == nil:
		metrics.AnnotationCache.WithLabelValues("hit").Inc()
		res.Relink(entries)
		return &res, true
	case errors.Is(err, database.ErrCacheMiss):
		metrics.AnnotationCache.WithLabelValues("miss").Inc()
	default:
		metrics.AnnotationCache.WithLabelValues("error").Inc()
		s.logger.Warn("annotation cache read failed", map[string]interface{}{
			"errorCode": string(apperrors.ErrCodeCacheUnavailable),
			"error":     err,
		})
	}
	return nil, false
}

func (s *Service) storeMemo(ctx context.Context, key string, res *annotate.Result) {
	if s.cache == nil || s.cfg.ResultCacheTTL <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, key, res, s.cfg.ResultCacheTTL); err != nil {
		s.logger.Warn("annotation cache write failed", map[string]interface{}{
			"errorCode": string(apperrors.ErrCodeCacheUnavailable),
			"error":     err,
		})
	}
}

func (s *Service) recordExtraction(res *annotate.Result) {
	for _, rec := range res.Recommendations {
		metrics.RecommendationsExtracted.WithLabelValues(string(rec.Pass)).Inc()
		metrics.CatalogMatches.WithLabelValues(string(rec.MatchTier)).Inc()
	}
}

func (s *Service) finish(ctx context.Context, res *annotate.Result, entries []models.CatalogEntry, version string, cached bool, start time.Time) *Response {
	source := "inline"
	if s.catalog != nil {
		source = s.catalog.Name()
	}
	metrics.AnnotationsTotal.WithLabelValues(string(res.Mode)).Inc()
	metrics.AnnotationDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	s.obs.RecordRecommendations(ctx, string(res.Mode), len(res.Recommendations), res.Matched())

	s.logger.Info("reply annotated", map[string]interface{}{
		"segments":        len(res.Segments),
		"recommendations": len(res.Recommendations),
		"matched":         res.Matched(),
		"mode":            string(res.Mode),
		"cached":          cached,
		"durationMs":      time.Since(start).Milliseconds(),
	})

	return &Response{
		ID:                 uuid.NewString(),
		Result:             res,
		HasRecommendations: len(res.Recommendations) > 0,
		CatalogVersion:     version,
		Cached:             cached,
		Catalog:            entries,
	}
}

func memoKey(text, catalogVersion string) string {
	return memoKeyPrefix + strconv.FormatUint(xxh3.HashString(text), 16) + ":" + catalogVersion
}
