// Package catalog loads the product entries replies are resolved against.
package catalog

import (
	"context"
	"strconv"
	"strings"

	"assistant-workers/internal/models"

	"github.com/zeebo/xxh3"
)

// Query selects catalog entries. IDs take precedence over Text; an empty
// query asks for the source's default listing.
type Query struct {
	IDs  []string
	Text string
}

// IsEmpty reports whether the query names neither ids nor search text.
func (q Query) IsEmpty() bool {
	return len(q.IDs) == 0 && strings.TrimSpace(q.Text) == ""
}

// Repository loads catalog entries for a query.
type Repository interface {
	Name() string
	Lookup(ctx context.Context, q Query) ([]models.CatalogEntry, error)
}

// Version fingerprints the entries that matter for resolution, in order.
// Two catalogs with the same version resolve every title identically.
func Version(entries []models.CatalogEntry) string {
	h := xxh3.New()
	for _, e := range entries {
		_, _ = h.WriteString(e.ID)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(e.Title)
		_, _ = h.WriteString("\x00")
		if e.Price != nil {
			_, _ = h.WriteString(strconv.FormatFloat(*e.Price, 'g', -1, 64))
		}
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(strings.Join(e.Activities, ","))
		_, _ = h.WriteString("\x1e")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// orderByIDs returns entries in the order of ids, dropping unknown ids and
// duplicates.
func orderByIDs(ids []string, entries []models.CatalogEntry) []models.CatalogEntry {
	byID := make(map[string]models.CatalogEntry, len(entries))
	for _, e := range entries {
		if _, ok := byID[e.ID]; !ok {
			byID[e.ID] = e
		}
	}
	out := make([]models.CatalogEntry, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// splitActivities parses the comma separated activities column.
func splitActivities(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// searchTerms lowercases text and keeps words longer than three characters.
func searchTerms(text string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]*\"'")
		if len([]rune(w)) > 3 {
			out = append(out, w)
		}
	}
	return out
}
