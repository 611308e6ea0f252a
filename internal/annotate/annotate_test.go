package annotate

import (
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/models"
)

func float64Ptr(v float64) *float64 { return &v }

func TestAnnotator_Annotate_Scenario(t *testing.T) {
	catalog := []models.CatalogEntry{{ID: "p1", Title: "Trail Runner Jacket", Price: float64Ptr(2499)}}
	a := New(DefaultOptions())

	result := a.Annotate("I'd suggest the **Trail Runner Jacket** (₹2499) for your trip.", catalog)

	require.Len(t, result.Segments, 3)
	assert.Equal(t, KindText, result.Segments[0].Kind)
	assert.Equal(t, "I'd suggest the ", result.Segments[0].Content)
	assert.Equal(t, KindEmphasis, result.Segments[1].Kind)
	assert.Equal(t, "Trail Runner Jacket", result.Segments[1].Content)
	assert.Equal(t, KindText, result.Segments[2].Kind)
	assert.Equal(t, " (₹2499) for your trip.", result.Segments[2].Content)

	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, "Trail Runner Jacket", rec.Title)
	assert.Equal(t, 2499.0, rec.Price)
	assert.Same(t, &catalog[0], rec.MatchedEntity)
	assert.Equal(t, TierExact, rec.MatchTier)
	assert.Equal(t, ModeStructured, result.Mode)
	assert.Equal(t, 1, result.Matched())
}

func TestAnnotator_Annotate_NoPrices(t *testing.T) {
	a := New(DefaultOptions())

	result := a.Annotate("Try the **Trail Runner Jacket** or [our guide](https://shop.test/guide).", testCatalog())

	assert.Empty(t, result.Recommendations)
	assert.Equal(t, ModePlain, result.Mode)
	require.Len(t, result.Segments, 5)
	assert.Equal(t, KindEmphasis, result.Segments[1].Kind)
	assert.Equal(t, KindLink, result.Segments[3].Kind)
	assert.Equal(t, ".", result.Segments[4].Content)
}

func TestAnnotator_Annotate_UnmatchedRecommendation(t *testing.T) {
	a := New(DefaultOptions())

	result := a.Annotate("Grab a **Yoga Mat Bundle** (₹899) as well.", testCatalog())

	require.Len(t, result.Recommendations, 1)
	assert.Nil(t, result.Recommendations[0].MatchedEntity)
	assert.Equal(t, TierNone, result.Recommendations[0].MatchTier)
	assert.Equal(t, ModeStructured, result.Mode)
	assert.Equal(t, 0, result.Matched())
}

func TestAnnotator_Annotate_ShortKnownTitle(t *testing.T) {
	catalog := []models.CatalogEntry{{ID: "t1", Title: "Tee"}}
	a := New(DefaultOptions())

	result := a.Annotate("Tee (₹10)", catalog)

	require.Len(t, result.Recommendations, 1)
	assert.Same(t, &catalog[0], result.Recommendations[0].MatchedEntity)

	result = a.Annotate("a (₹10)", catalog)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, ModePlain, result.Mode)
}

func TestAnnotator_AnnotateValue(t *testing.T) {
	a := New(DefaultOptions())

	for _, v := range []any{nil, 42, struct{ A int }{1}} {
		result := a.AnnotateValue(v, testCatalog())
		require.Len(t, result.Segments, 1)
		assert.Equal(t, KindText, result.Segments[0].Kind)
		assert.Empty(t, result.Recommendations)
		assert.Equal(t, ModePlain, result.Mode)
	}

	result := a.AnnotateValue("**Alpine Hoodie** (₹1999)", testCatalog())
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "p3", result.Recommendations[0].MatchedEntity.ID)
}

func TestRecommendation_MarshalJSON(t *testing.T) {
	entry := &models.CatalogEntry{ID: "p4", Title: "Trail Runner Jacket"}

	data, err := json.Marshal(Recommendation{
		Title:         "Trail Runner Jacket",
		Price:         2499,
		Pass:          PassInline,
		MatchedEntity: entry,
		MatchTier:     TierExact,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Trail Runner Jacket","price":2499,"pass":"inline","matchedEntityId":"p4","matchTier":"exact"}`, string(data))

	data, err = json.Marshal(Recommendation{Title: "Odd", Price: math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Odd","price":null,"pass":"","matchedEntityId":null,"matchTier":"none"}`, string(data))
}

func TestResult_Relink(t *testing.T) {
	a := New(DefaultOptions())
	catalog := testCatalog()
	original := a.Annotate("**Alpine Hoodie** (₹1999) and **Moon Boots Deluxe** (₹10)", catalog)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	decoded.Relink(catalog)

	require.Len(t, decoded.Recommendations, 2)
	assert.Same(t, &catalog[3], decoded.Recommendations[0].MatchedEntity)
	assert.Nil(t, decoded.Recommendations[1].MatchedEntity)
	assert.Equal(t, original.Segments, decoded.Segments)

	decoded.Relink(catalog[:1])
	assert.Nil(t, decoded.Recommendations[0].MatchedEntity)
	assert.Equal(t, TierNone, decoded.Recommendations[0].MatchTier)
}

func TestAnnotator_ConcurrentUse(t *testing.T) {
	a := New(DefaultOptions())
	catalog := testCatalog()
	text := "Pick the **Performance Track Jacket** (₹3499) or the **Alpine Hoodie** at ₹1999."

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Annotate(text, catalog)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	require.Len(t, results[0].Recommendations, 2)
	assert.Equal(t, "p2", results[0].Recommendations[0].MatchedEntity.ID)
	assert.Equal(t, PassProximity, results[0].Recommendations[1].Pass)
}

func TestAnnotator_UniqueRecommendations(t *testing.T) {
	a := New(DefaultOptions())
	inputs := []string{
		"**Alpine Hoodie** (₹1) alpine hoodie (₹2) **ALPINE HOODIE** ₹3",
		strings.Repeat("**Trail Runner Jacket** ₹2499\n", 5),
	}
	for _, input := range inputs {
		titles := map[string]bool{}
		for _, rec := range a.Annotate(input, testCatalog()).Recommendations {
			key := strings.ToLower(strings.TrimSpace(rec.Title))
			assert.False(t, titles[key])
			titles[key] = true
		}
	}
}
