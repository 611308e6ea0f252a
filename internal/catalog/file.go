package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/models"

	"gopkg.in/yaml.v3"
)

type fileCatalog struct {
	Products []models.CatalogEntry `yaml:"products"`
}

// FileRepository serves a catalog kept in a YAML or JSON file. The file is
// read once, on first lookup.
type FileRepository struct {
	path string

	once    sync.Once
	entries []models.CatalogEntry
	err     error
}

// NewFileRepository reads a YAML or JSON catalog lazily on first lookup.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// NewStaticRepository serves entries already in memory.
func NewStaticRepository(entries []models.CatalogEntry) *FileRepository {
	r := &FileRepository{path: "static"}
	r.once.Do(func() { r.entries = entries })
	return r
}

func (r *FileRepository) Name() string { return "file" }

func (r *FileRepository) load() ([]models.CatalogEntry, error) {
	r.once.Do(func() {
		data, err := os.ReadFile(r.path)
		if err != nil {
			r.err = apperrors.NewCatalogLoadFailedError(r.Name(), err)
			return
		}
		entries, err := ParseEntries(data)
		if err != nil {
			r.err = apperrors.NewCatalogLoadFailedError(r.Name(), fmt.Errorf("%s: %w", r.path, err))
			return
		}
		r.entries = entries
	})
	return r.entries, r.err
}

func (r *FileRepository) Lookup(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCatalogTimeoutError(r.Name())
	}

	switch {
	case len(q.IDs) > 0:
		return orderByIDs(q.IDs, entries), nil
	case len(searchTerms(q.Text)) > 0:
		terms := searchTerms(q.Text)
		var out []models.CatalogEntry
		for _, e := range entries {
			title := strings.ToLower(e.Title)
			for _, term := range terms {
				if strings.Contains(title, term) {
					out = append(out, e)
					break
				}
			}
		}
		return out, nil
	default:
		out := make([]models.CatalogEntry, len(entries))
		copy(out, entries)
		return out, nil
	}
}

// ParseEntries decodes a catalog document: either a list of entries or a
// mapping with a products list. JSON documents parse as YAML.
func ParseEntries(data []byte) ([]models.CatalogEntry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	var entries []models.CatalogEntry
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var f fileCatalog
		if err := doc.Decode(&f); err != nil {
			return nil, err
		}
		entries = f.Products
	default:
		return nil, fmt.Errorf("unexpected catalog document at line %d", doc.Line)
	}

	for i, e := range entries {
		if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("entry %d: id and title are required", i)
		}
	}
	return entries, nil
}
