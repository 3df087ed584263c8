package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// Searcher answers workflow searches. Results are memoized in the TTL
// cache port so repeated queries within the window skip the database.
type Searcher struct {
	store   WorkflowStore
	index   *Indexer
	cache   ports.Cache
	tracer  ports.Tracer
	metrics *MetricsCollector
	ttlSecs int
	logger  zerolog.Logger
}

func NewSearcher(store WorkflowStore, index *Indexer, cache ports.Cache, tracer ports.Tracer, metrics *MetricsCollector, ttlSecs int, logger zerolog.Logger) *Searcher {
	return &Searcher{
		store:   store,
		index:   index,
		cache:   cache,
		tracer:  tracer,
		metrics: metrics,
		ttlSecs: ttlSecs,
		logger:  logger.With().Str("component", "workflow_search").Logger(),
	}
}

// Search runs a BM25 query with optional tag filtering.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if opts.K <= 0 {
		opts.K = 10
	}

	ctx, finish := s.tracer.StartSpan(ctx, "workflow_search", map[string]any{"query": query, "k": opts.K})
	start := time.Now()

	key := cacheKey(query, opts)
	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var cached []SearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				s.metrics.RecordQuery(time.Since(start), true, nil)
				finish(nil)
				return cached, nil
			}
			// Corrupt entry, drop it and fall through to the database.
			_ = s.cache.Delete(ctx, key)
		}
	}

	results, err := s.query(ctx, query, opts)
	s.metrics.RecordQuery(time.Since(start), false, err)
	if err != nil {
		finish(err)
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			_ = s.cache.Set(ctx, key, data, s.ttlSecs)
		}
	}

	finish(nil)
	return results, nil
}

func (s *Searcher) query(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	// Over-fetch when tag filtering will discard rows afterwards.
	fetchK := opts.K
	if len(opts.Tags) > 0 {
		fetchK *= 4
	}

	results, err := s.store.SearchWorkflows(ctx, escapeFTS5Query(query), opts.Lang, fetchK)
	if err != nil {
		return nil, err
	}

	if len(opts.Tags) > 0 && s.index != nil {
		allowed, ok := s.index.TaggedWith(opts.Tags)
		if !ok {
			return []SearchResult{}, nil
		}
		filtered := results[:0]
		for _, r := range results {
			if _, ok := allowed[r.Workflow.ID]; ok {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if len(results) > opts.K {
		results = results[:opts.K]
	}
	if results == nil {
		results = []SearchResult{}
	}

	s.logger.Debug().Str("query", query).Int("results", len(results)).Msg("search complete")
	return results, nil
}

func cacheKey(query string, opts SearchOptions) string {
	tags := make([]string, len(opts.Tags))
	for i, t := range opts.Tags {
		tags[i] = strings.ToLower(strings.TrimSpace(t))
	}
	sort.Strings(tags)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", strings.ToLower(query), opts.Lang, opts.K, strings.Join(tags, ","))
	return "wfsearch:" + hex.EncodeToString(h.Sum(nil))
}
