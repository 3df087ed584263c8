package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/armon/go-radix"
)

// Catalog answers prefix lookups over loaded terms. Keys are
// lower-cased so the autocomplete is case-insensitive.
type Catalog struct {
	mu   sync.RWMutex
	tree *radix.Tree
}

func NewCatalog() *Catalog {
	return &Catalog{tree: radix.New()}
}

// Load replaces the catalog contents with the stored terms for a language.
func (c *Catalog) Load(ctx context.Context, store TermStore, lang string) error {
	terms, err := store.ListTerms(ctx, lang)
	if err != nil {
		return err
	}

	tree := radix.New()
	for _, t := range terms {
		tree.Insert(strings.ToLower(t.Term), t)
	}

	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()
	return nil
}

// Insert adds or replaces a single term.
func (c *Catalog) Insert(term *CatalogTerm) {
	c.mu.Lock()
	c.tree.Insert(strings.ToLower(term.Term), term)
	c.mu.Unlock()
}

// PrefixSearch returns up to limit terms starting with the prefix, in
// lexical order. limit <= 0 means no limit.
func (c *Catalog) PrefixSearch(prefix string, limit int) []*CatalogTerm {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*CatalogTerm
	c.tree.WalkPrefix(prefix, func(key string, value interface{}) bool {
		out = append(out, value.(*CatalogTerm))
		return limit > 0 && len(out) >= limit
	})
	return out
}

// Len reports the number of loaded terms.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Len()
}
