// Package annotate turns an assistant reply into typed segments and the
// product recommendations it mentions, resolved against a product catalog.
// Everything here is pure and safe for concurrent use.
package annotate

import (
	"encoding/json"
	"math"

	"assistant-workers/internal/models"
)

// RenderMode tells the consumer how to lay out a result.
type RenderMode string

const (
	ModePlain      RenderMode = "plain"
	ModeStructured RenderMode = "structured"
)

// Recommendation is a product the reply recommends. MatchedEntity points into
// the catalog slice passed to Annotate and is nil when no tier matched.
type Recommendation struct {
	Title         string
	Price         float64
	Pass          ExtractPass
	MatchedEntity *models.CatalogEntry
	MatchTier     MatchTier
}

// HasPrice reports whether Price can be displayed.
func (r Recommendation) HasPrice() bool {
	return !math.IsNaN(r.Price) && !math.IsInf(r.Price, 0)
}

type recommendationJSON struct {
	Title           string      `json:"title"`
	Price           *float64    `json:"price"`
	Pass            ExtractPass `json:"pass"`
	MatchedEntityID *string     `json:"matchedEntityId"`
	MatchTier       MatchTier   `json:"matchTier"`
}

// MarshalJSON writes the matched entity by id and a non-finite price as null.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	out := recommendationJSON{Title: r.Title, Pass: r.Pass, MatchTier: r.MatchTier}
	if r.HasPrice() {
		p := r.Price
		out.Price = &p
	}
	if r.MatchedEntity != nil {
		id := r.MatchedEntity.ID
		out.MatchedEntityID = &id
	}
	if out.MatchTier == "" {
		out.MatchTier = TierNone
	}
	return json.Marshal(out)
}

func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var in recommendationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Title = in.Title
	r.Pass = in.Pass
	r.MatchTier = in.MatchTier
	r.Price = math.NaN()
	if in.Price != nil {
		r.Price = *in.Price
	}
	r.MatchedEntity = nil
	if in.MatchedEntityID != nil {
		r.MatchedEntity = &models.CatalogEntry{ID: *in.MatchedEntityID}
	}
	return nil
}

// Result bundles both views of one reply.
type Result struct {
	Segments        []Segment        `json:"segments"`
	Recommendations []Recommendation `json:"recommendations"`
	Mode            RenderMode       `json:"renderMode"`
}

// Matched counts recommendations that resolved to a catalog entry.
func (r *Result) Matched() int {
	n := 0
	for _, rec := range r.Recommendations {
		if rec.MatchedEntity != nil {
			n++
		}
	}
	return n
}

// Relink points every MatchedEntity back at the entry with the same id in
// catalog. Results decoded from a cache only carry ids.
func (r *Result) Relink(catalog []models.CatalogEntry) {
	byID := make(map[string]int, len(catalog))
	for i := range catalog {
		if _, ok := byID[catalog[i].ID]; !ok {
			byID[catalog[i].ID] = i
		}
	}
	for i := range r.Recommendations {
		rec := &r.Recommendations[i]
		if rec.MatchedEntity == nil {
			continue
		}
		if idx, ok := byID[rec.MatchedEntity.ID]; ok {
			rec.MatchedEntity = &catalog[idx]
		} else {
			rec.MatchedEntity = nil
			rec.MatchTier = TierNone
		}
	}
}

// Annotator composes the segmenter, extractor and resolver.
type Annotator struct {
	segmenter *Segmenter
	extractor *Extractor
	resolver  *Resolver
}

// New wires a segmenter, extractor and resolver over the same options.
func New(opts Options) *Annotator {
	return &Annotator{
		segmenter: NewSegmenter(opts),
		extractor: NewExtractor(opts),
		resolver:  NewResolver(opts),
	}
}

// Segmenter and Resolver expose the components for callers that need only one step.
func (a *Annotator) Segmenter() *Segmenter { return a.segmenter }
func (a *Annotator) Resolver() *Resolver   { return a.resolver }

// Annotate segments text and resolves its recommendations against catalog.
// The catalog is only read.
func (a *Annotator) Annotate(text string, catalog []models.CatalogEntry) *Result {
	known := func(title string) bool {
		return a.resolver.Resolve(title, catalog) != nil
	}

	candidates := a.extractor.Extract(text, known)
	recs := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		entry, tier := a.resolver.ResolveWithTier(c.Title, catalog)
		recs = append(recs, Recommendation{
			Title:         c.Title,
			Price:         c.Price,
			Pass:          c.Pass,
			MatchedEntity: entry,
			MatchTier:     tier,
		})
	}

	mode := ModePlain
	if len(recs) > 0 {
		mode = ModeStructured
	}
	return &Result{
		Segments:        a.segmenter.Segment(text),
		Recommendations: recs,
		Mode:            mode,
	}
}

// AnnotateValue accepts a message of any type. Non-string input yields a single
// text segment and no recommendations.
func (a *Annotator) AnnotateValue(v any, catalog []models.CatalogEntry) *Result {
	if text, ok := v.(string); ok {
		return a.Annotate(text, catalog)
	}
	return &Result{
		Segments:        a.segmenter.SegmentValue(v),
		Recommendations: []Recommendation{},
		Mode:            ModePlain,
	}
}
