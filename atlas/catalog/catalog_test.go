package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskatlas/taskatlas/atlas/generation"
	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// memTermStore is an in-memory TermStore for tests.
type memTermStore struct {
	mu    sync.Mutex
	terms map[string]*CatalogTerm
}

func newMemTermStore() *memTermStore {
	return &memTermStore{terms: make(map[string]*CatalogTerm)}
}

func (s *memTermStore) UpsertTerm(ctx context.Context, term *CatalogTerm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[term.Term+"|"+term.Lang] = term
	return nil
}

func (s *memTermStore) ListTerms(ctx context.Context, lang string) ([]*CatalogTerm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CatalogTerm
	for _, t := range s.terms {
		if t.Lang == lang {
			out = append(out, t)
		}
	}
	return out, nil
}

var _ TermStore = (*memTermStore)(nil)

type stubProvider struct {
	completionFunc func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error)
}

func (p *stubProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	if p.completionFunc != nil {
		return p.completionFunc(ctx, in, opts)
	}
	term := in.Messages[len(in.Messages)-1].Content
	return ports.Completion{Text: fmt.Sprintf(`{"definition": "Definition of %s."}`, term)}, nil
}

type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}
func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

func newTestGenerator(provider ports.Provider, store TermStore) *Generator {
	templates := NewTemplateStore("", zerolog.Nop())
	return NewGenerator(provider, generation.NewGuardrails(10000), &noOpRateLimiter{}, &noOpTracer{}, templates, store, ports.Options{}, 2, zerolog.Nop())
}

func TestGenerator_GenerateCatalog(t *testing.T) {
	store := newMemTermStore()
	gen := newTestGenerator(&stubProvider{}, store)

	terms := []string{"RPA", "OCR", "Workflow"}
	results, err := gen.GenerateCatalog(context.Background(), terms, "en")
	require.NoError(t, err)
	require.Len(t, results, len(terms))

	for _, r := range results {
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.Equal(t, "en", r.Lang)
		assert.Contains(t, r.Definition, r.Term)
	}

	stored, err := store.ListTerms(context.Background(), "en")
	require.NoError(t, err)
	assert.Len(t, stored, len(terms))
}

func TestGenerator_UnsupportedLanguage(t *testing.T) {
	gen := newTestGenerator(&stubProvider{}, newMemTermStore())

	_, err := gen.GenerateCatalog(context.Background(), []string{"RPA"}, "fr")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestGenerator_ProviderErrorCancelsBatch(t *testing.T) {
	provider := &stubProvider{
		completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{}, fmt.Errorf("service unavailable")
		},
	}
	gen := newTestGenerator(provider, newMemTermStore())

	_, err := gen.GenerateCatalog(context.Background(), []string{"RPA", "OCR"}, "en")
	assert.Error(t, err)
}

func TestGenerator_RejectsMalformedDefinition(t *testing.T) {
	provider := &stubProvider{
		completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{Text: `{"summary": "wrong shape"}`}, nil
		},
	}
	store := newMemTermStore()
	gen := newTestGenerator(provider, store)

	_, err := gen.GenerateCatalog(context.Background(), []string{"RPA"}, "en")
	assert.Error(t, err)

	stored, err := store.ListTerms(context.Background(), "en")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCatalog_PrefixSearch(t *testing.T) {
	c := NewCatalog()
	for _, term := range []string{"Roboter", "Robotic Process Automation", "Routing", "OCR"} {
		c.Insert(&CatalogTerm{ID: uuid.New(), Term: term, Lang: "en"})
	}

	results := c.PrefixSearch("rob", 0)
	require.Len(t, results, 2)
	assert.Equal(t, "Roboter", results[0].Term)
	assert.Equal(t, "Robotic Process Automation", results[1].Term)

	assert.Len(t, c.PrefixSearch("ro", 2), 2)
	assert.Empty(t, c.PrefixSearch("xyz", 0))
	assert.Equal(t, 4, c.Len())
}

func TestCatalog_Load(t *testing.T) {
	store := newMemTermStore()
	for _, term := range []string{"RPA", "OCR"} {
		require.NoError(t, store.UpsertTerm(context.Background(), &CatalogTerm{ID: uuid.New(), Term: term, Lang: "de"}))
	}

	c := NewCatalog()
	require.NoError(t, c.Load(context.Background(), store, "de"))
	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.PrefixSearch("OCR", 0), 1)
}

func TestTemplateStore_Defaults(t *testing.T) {
	s := NewTemplateStore(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())
	require.NoError(t, s.Load())

	body, ok := s.Get("definition_en")
	require.True(t, ok)
	assert.Contains(t, body, "glossary")

	_, ok = s.Get("definition_fr")
	assert.False(t, ok)
}

func TestTemplateStore_FileOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "definition_en.tmpl"), []byte("custom prompt\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	s := NewTemplateStore(dir, zerolog.Nop())
	require.NoError(t, s.Load())

	body, ok := s.Get("definition_en")
	require.True(t, ok)
	assert.Equal(t, "custom prompt", body)

	// Non-template files are skipped.
	_, ok = s.Get("notes")
	assert.False(t, ok)
}

func TestTemplateStore_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	s := NewTemplateStore(dir, zerolog.Nop())
	require.NoError(t, s.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "definition_en.tmpl"), []byte("reloaded prompt"), 0644))

	require.Eventually(t, func() bool {
		body, _ := s.Get("definition_en")
		return body == "reloaded prompt"
	}, 2*time.Second, 20*time.Millisecond)
}
