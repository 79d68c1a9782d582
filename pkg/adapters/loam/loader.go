// Package loam loads cookbook directories through the Loam document store.
//
// A cookbook is a directory of recipes. Each recipe is a Markdown file whose
// YAML frontmatter holds "resources" and/or "control_groups", written exactly
// like a standalone config document; the Markdown body is free-form notes.
// JSON and YAML files in the directory are read as recipes too.
package loam

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/steward/pkg/config"
	"github.com/aretw0/steward/pkg/domain"
)

// Loader adapts a Loam repository into config documents.
type Loader struct {
	Repo *loam.TypedRepository[RecipeMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[RecipeMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository over dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numeric types consistent across Markdown, JSON and
	// YAML. Steward never writes recipes.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
		loam.WithVersioning(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[RecipeMetadata](repo)), nil
}

// Recipe is one decoded cookbook entry.
type Recipe struct {
	ID          string
	Description string
	Document    *config.Document
}

// ListRecipes returns the normalized recipe IDs, sorted.
func (l *Loader) ListRecipes(ctx context.Context) ([]string, error) {
	recipes, err := l.recipes(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// LoadRecipe decodes a single recipe. The ID may omit the file extension.
func (l *Loader) LoadRecipe(ctx context.Context, id string) (*Recipe, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, &domain.ConfigParseError{Path: id, Cause: fmt.Errorf("loam get failed: %w", err)}
	}
	return decode(recipeID(doc.ID, doc.Data), doc.Data)
}

// Load decodes every recipe and merges them, in recipe ID order, into one
// document.
func (l *Loader) Load(ctx context.Context) (*config.Document, error) {
	recipes, err := l.recipes(ctx)
	if err != nil {
		return nil, err
	}
	merged := &config.Document{}
	for _, r := range recipes {
		merged.Merge(r.Document)
	}
	return merged, nil
}

func (l *Loader) recipes(ctx context.Context) ([]*Recipe, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	recipes := make([]*Recipe, 0, len(docs))
	for _, doc := range docs {
		id := recipeID(doc.ID, doc.Data)
		if existing, ok := seen[id]; ok {
			return nil, &domain.ConfigParseError{
				Path:  doc.ID,
				Cause: fmt.Errorf("collision detected: recipe %q is defined in both %q and %q", id, existing, doc.ID),
			}
		}
		seen[id] = doc.ID

		r, err := decode(id, doc.Data)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}

	slices.SortFunc(recipes, func(a, b *Recipe) int { return strings.Compare(a.ID, b.ID) })
	return recipes, nil
}

func decode(id string, meta RecipeMetadata) (*Recipe, error) {
	doc, err := config.Decode(meta.raw())
	if err != nil {
		var cpe *domain.ConfigParseError
		if errors.As(err, &cpe) {
			cpe.Path = id
			return nil, cpe
		}
		return nil, &domain.ConfigParseError{Path: id, Cause: err}
	}
	return &Recipe{ID: id, Description: meta.Description, Document: doc}, nil
}

// recipeID prefers the frontmatter id and falls back to the file name.
func recipeID(docID string, meta RecipeMetadata) string {
	raw := meta.ID
	if raw == "" {
		raw = docID
	}
	return trimExtension(raw)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// normalize converts YAML's map[any]any into map[string]any, recursively.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprintf("%v", k)] = normalize(sub)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
