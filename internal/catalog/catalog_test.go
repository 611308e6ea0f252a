package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/models"
)

func price(v float64) *float64 { return &v }

func errorCode(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr), "expected StandardError, got %v", err)
	return stdErr.Code
}

// countingRepo records the queries it serves.
type countingRepo struct {
	mu      sync.Mutex
	entries []models.CatalogEntry
	queries []Query
	err     error
}

func (r *countingRepo) Name() string { return "fake" }

func (r *countingRepo) Lookup(_ context.Context, q Query) ([]models.CatalogEntry, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if len(q.IDs) > 0 {
		return orderByIDs(q.IDs, r.entries), nil
	}
	return r.entries, nil
}

func (r *countingRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

func sampleEntries() []models.CatalogEntry {
	return []models.CatalogEntry{
		{ID: "p1", Title: "Trail Runner Jacket", Price: price(4999), Activities: []string{"running"}},
		{ID: "p2", Title: "Alpine Hoodie", Price: price(2499)},
		{ID: "p3", Title: "Classic Running Tee"},
	}
}

func TestVersion(t *testing.T) {
	a := sampleEntries()
	b := sampleEntries()
	assert.Equal(t, Version(a), Version(b))

	b[1].Price = price(1999)
	assert.NotEqual(t, Version(a), Version(b))

	reordered := []models.CatalogEntry{a[1], a[0], a[2]}
	assert.NotEqual(t, Version(a), Version(reordered))

	assert.NotEmpty(t, Version(nil))
}

func TestOrderByIDs(t *testing.T) {
	got := orderByIDs([]string{"p3", "missing", "p1", "p3"}, sampleEntries())

	require.Len(t, got, 2)
	assert.Equal(t, "p3", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)
}

func TestSplitActivities(t *testing.T) {
	assert.Equal(t, []string{"running", "hiking"}, splitActivities(" running, ,hiking "))
	assert.Nil(t, splitActivities("  "))
}

func TestPostgresRepository_Lookup(t *testing.T) {
	columns := []string{"id", "title", "price", "currency", "category", "activities", "image_url", "product_url"}

	t.Run("by ids keeps request order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT .* FROM products WHERE id = ANY`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("p1", "Trail Runner Jacket", 4999.0, "INR", "outerwear", "running, hiking", "https://img/p1.jpg", "https://shop/p1").
				AddRow("p2", "Alpine Hoodie", nil, nil, nil, nil, nil, nil))

		repo := NewPostgresRepository(db, 10)
		got, err := repo.Lookup(context.Background(), Query{IDs: []string{"p2", "p1"}})
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, "p2", got[0].ID)
		assert.Nil(t, got[0].Price)
		assert.Empty(t, got[0].Activities)

		assert.Equal(t, "Trail Runner Jacket", got[1].Title)
		require.NotNil(t, got[1].Price)
		assert.Equal(t, 4999.0, *got[1].Price)
		assert.Equal(t, []string{"running", "hiking"}, got[1].Activities)
		assert.Equal(t, "https://shop/p1", got[1].ProductURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("text search", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT .* FROM products WHERE title ILIKE ANY`).
			WithArgs(sqlmock.AnyArg(), 10).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("p1", "Trail Runner Jacket", 4999.0, "INR", "outerwear", "", "", ""))

		repo := NewPostgresRepository(db, 10)
		got, err := repo.Lookup(context.Background(), Query{Text: "a light jacket for trail runs"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("default listing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT .* FROM products ORDER BY id LIMIT`).
			WithArgs(20).
			WillReturnRows(sqlmock.NewRows(columns))

		repo := NewPostgresRepository(db, 0)
		got, err := repo.Lookup(context.Background(), Query{})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT .* FROM products`).WillReturnError(errors.New("connection refused"))

		repo := NewPostgresRepository(db, 10)
		_, err = repo.Lookup(context.Background(), Query{IDs: []string{"p1"}})
		assert.Equal(t, apperrors.ErrCodeCatalogLoadFailed, errorCode(t, err))
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func esResponse(status int, body string) *http.Response {
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func newStubES(t *testing.T, fn roundTripFunc) *elasticsearch.Client {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: fn,
	})
	require.NoError(t, err)
	return es
}

func TestElasticRepository_Lookup(t *testing.T) {
	const hits = `{"hits":{"hits":[
		{"_id":"p2","_source":{"title":"Alpine Hoodie","price":2499}},
		{"_id":"ignored","_source":{"id":"p1","title":"Trail Runner Jacket","activities":["running"]}}
	]}}`

	var gotPath, gotBody string
	es := newStubES(t, func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		return esResponse(200, hits), nil
	})
	repo := NewElasticRepository(es, "catalog", 5)

	got, err := repo.Lookup(context.Background(), Query{IDs: []string{"p1", "p2"}})
	require.NoError(t, err)

	assert.Equal(t, "/catalog/_search", gotPath)
	assert.Contains(t, gotBody, `"ids"`)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, []string{"running"}, got[0].Activities)
	assert.Equal(t, "p2", got[1].ID)
	require.NotNil(t, got[1].Price)
	assert.Equal(t, 2499.0, *got[1].Price)

	_, err = repo.Lookup(context.Background(), Query{Text: "hoodie"})
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"multi_match"`)

	_, err = repo.Lookup(context.Background(), Query{})
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"match_all"`)
}

func TestElasticRepository_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected apperrors.ErrorCode
	}{
		{"missing index", 404, `{"error":{"type":"index_not_found_exception"}}`, apperrors.ErrCodeIndexNotFound},
		{"server error", 500, `{"error":"boom"}`, apperrors.ErrCodeCatalogSearchFailed},
		{"garbled body", 200, `{"hits":`, apperrors.ErrCodeCatalogSearchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := newStubES(t, func(*http.Request) (*http.Response, error) {
				return esResponse(tt.status, tt.body), nil
			})
			_, err := NewElasticRepository(es, "", 0).Lookup(context.Background(), Query{Text: "jacket"})
			assert.Equal(t, tt.expected, errorCode(t, err))
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileRepository(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
products:
  - id: p1
    title: Trail Runner Jacket
    price: 4999
    activities: [running, hiking]
  - id: p2
    title: Alpine Hoodie
`)
	repo := NewFileRepository(path)
	ctx := context.Background()

	all, err := repo.Lookup(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byID, err := repo.Lookup(ctx, Query{IDs: []string{"p2"}})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Alpine Hoodie", byID[0].Title)

	byText, err := repo.Lookup(ctx, Query{Text: "a warm jacket"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, "p1", byText[0].ID)
	assert.Equal(t, []string{"running", "hiking"}, byText[0].Activities)
}

func TestParseEntries(t *testing.T) {
	list, err := ParseEntries([]byte(`[{"id": "p1", "title": "Alpine Hoodie", "price": 2499.5}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2499.5, *list[0].Price)

	empty, err := ParseEntries([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseEntries([]byte("- id: p1\n"))
	assert.ErrorContains(t, err, "id and title are required")

	_, err = ParseEntries([]byte("just a string"))
	assert.Error(t, err)
}

func TestFileRepository_Errors(t *testing.T) {
	_, err := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml")).Lookup(context.Background(), Query{})
	assert.Equal(t, apperrors.ErrCodeCatalogLoadFailed, errorCode(t, err))

	bad := writeFile(t, "bad.yaml", "products: {")
	_, err = NewFileRepository(bad).Lookup(context.Background(), Query{})
	assert.Equal(t, apperrors.ErrCodeCatalogLoadFailed, errorCode(t, err))
}

func TestStaticRepository(t *testing.T) {
	got, err := NewStaticRepository(sampleEntries()).Lookup(context.Background(), Query{IDs: []string{"p3"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Classic Running Tee", got[0].Title)
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestCachedRepository_IDs(t *testing.T) {
	mr, cache := setupCache(t)
	next := &countingRepo{entries: sampleEntries()}
	repo := NewCachedRepository(next, cache, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := repo.Lookup(ctx, Query{IDs: []string{"p2", "p1"}})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "p2", first[0].ID)
	assert.True(t, mr.Exists("catalog:product:p1"))
	assert.True(t, mr.TTL("catalog:product:p1") > 0)

	second, err := repo.Lookup(ctx, Query{IDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls())
	assert.Equal(t, "p1", second[0].ID)
	assert.Equal(t, 4999.0, *second[0].Price)

	_, err = repo.Lookup(ctx, Query{IDs: []string{"p1", "p3"}})
	require.NoError(t, err)
	require.Equal(t, 2, next.calls())
	assert.Equal(t, []string{"p3"}, next.queries[1].IDs)
}

func TestCachedRepository_Lists(t *testing.T) {
	_, cache := setupCache(t)
	next := &countingRepo{entries: sampleEntries()}
	repo := NewCachedRepository(next, cache, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := repo.Lookup(ctx, Query{Text: "Trail  Jacket"})
	require.NoError(t, err)
	got, err := repo.Lookup(ctx, Query{Text: "trail jacket"})
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, 1, next.calls())
}

func TestCachedRepository_CacheDown(t *testing.T) {
	mr, cache := setupCache(t)
	mr.Close()

	next := &countingRepo{entries: sampleEntries()}
	repo := NewCachedRepository(next, cache, time.Minute, logger.NewTestLogger(t))

	got, err := repo.Lookup(context.Background(), Query{IDs: []string{"p1"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = repo.Lookup(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCachedRepository_SourceError(t *testing.T) {
	_, cache := setupCache(t)
	next := &countingRepo{err: apperrors.NewCatalogTimeoutError("fake")}
	repo := NewCachedRepository(next, cache, time.Minute, logger.NewTestLogger(t))

	_, err := repo.Lookup(context.Background(), Query{IDs: []string{"p1"}})
	assert.Equal(t, apperrors.ErrCodeCatalogTimeout, errorCode(t, err))
}

func TestNewFromConfig(t *testing.T) {
	log := logger.NewTestLogger(t)

	repo, err := NewFromConfig(config.CatalogConfig{Source: config.CatalogSourceNone}, Backends{}, log)
	require.NoError(t, err)
	assert.Nil(t, repo)

	path := writeFile(t, "catalog.yaml", "- id: p1\n  title: Alpine Hoodie\n")
	repo, err = NewFromConfig(config.CatalogConfig{Source: config.CatalogSourceFile, FilePath: path, Timeout: 1000}, Backends{}, log)
	require.NoError(t, err)
	assert.Equal(t, "file", repo.Name())
	entries, err := repo.Lookup(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, cache := setupCache(t)
	repo, err = NewFromConfig(config.CatalogConfig{Source: config.CatalogSourceFile, FilePath: path, CacheTTL: 60000},
		Backends{Redis: cache}, log)
	require.NoError(t, err)
	assert.IsType(t, &CachedRepository{}, repo)

	_, err = NewFromConfig(config.CatalogConfig{Source: config.CatalogSourcePostgres}, Backends{}, log)
	assert.ErrorContains(t, err, "needs a postgres connection")

	_, err = NewFromConfig(config.CatalogConfig{Source: config.CatalogSourceElasticsearch}, Backends{}, log)
	assert.ErrorContains(t, err, "needs an elasticsearch client")

	_, err = NewFromConfig(config.CatalogConfig{Source: "ftp"}, Backends{}, log)
	assert.ErrorContains(t, err, "unknown catalog source")
}
