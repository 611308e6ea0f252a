package annotate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"assistant-workers/internal/models"
)

// MatchTier names the resolution tier that produced a match.
type MatchTier string

const (
	TierNone            MatchTier = "none"
	TierExact           MatchTier = "exact"
	TierKeywordMajority MatchTier = "keyword_majority"
	TierKeywordAny      MatchTier = "keyword_any"
)

var (
	leadingArticleRegex = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
	parentheticalRegex  = regexp.MustCompile(`\s*\([^)]*\)`)
)

// Resolver matches a free-form product title against a catalog in three
// tiers: exact title, key word majority, any key word. Within a tier the first
// entry in catalog order wins.
type Resolver struct {
	opts Options
}

// NewResolver returns a resolver using the options' key word and majority thresholds.
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts.withDefaults()}
}

// Resolve returns a pointer into catalog, or nil when nothing matches.
func (r *Resolver) Resolve(title string, catalog []models.CatalogEntry) *models.CatalogEntry {
	entry, _ := r.ResolveWithTier(title, catalog)
	return entry
}

// ResolveWithTier returns the first catalog entry matching title and the tier
// that matched it, or nil and TierNone.
func (r *Resolver) ResolveWithTier(title string, catalog []models.CatalogEntry) (*models.CatalogEntry, MatchTier) {
	if title == "" || len(catalog) == 0 {
		return nil, TierNone
	}

	raw := strings.ToLower(strings.TrimSpace(title))
	normalized := NormalizeTitle(title)

	for i := range catalog {
		candidate := strings.ToLower(catalog[i].Title)
		if candidate == raw || candidate == normalized {
			return &catalog[i], TierExact
		}
	}

	keywords := r.Keywords(normalized)
	// A title without key words cannot carry a majority; stop at the exact tier
	// instead of letting a zero threshold match the first entry.
	if len(keywords) == 0 {
		return nil, TierNone
	}

	required := r.opts.MajorityThreshold
	if len(keywords) < required {
		required = len(keywords)
	}
	for i := range catalog {
		candidate := strings.ToLower(catalog[i].Title)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(candidate, kw) {
				hits++
			}
		}
		if hits >= required {
			return &catalog[i], TierKeywordMajority
		}
	}

	for i := range catalog {
		candidate := strings.ToLower(catalog[i].Title)
		for _, kw := range keywords {
			if strings.Contains(candidate, kw) {
				return &catalog[i], TierKeywordAny
			}
		}
	}

	return nil, TierNone
}

// NormalizeTitle lowercases, strips one leading English article and every
// parenthetical group, then trims.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = leadingArticleRegex.ReplaceAllString(s, "")
	s = parentheticalRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Keywords splits a normalized title on whitespace and keeps the words longer
// than MinKeywordLength code points.
func (r *Resolver) Keywords(normalized string) []string {
	var out []string
	for _, w := range strings.Fields(normalized) {
		if utf8.RuneCountInString(w) > r.opts.MinKeywordLength {
			out = append(out, w)
		}
	}
	return out
}
